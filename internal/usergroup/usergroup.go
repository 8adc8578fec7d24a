package usergroup

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"slices"

	"intelaccel/internal/logging"
	"intelaccel/internal/system"
)

// GroupManager inspects and changes supplementary group membership
type GroupManager interface {
	// IsMember reports whether username belongs to group
	IsMember(username, group string) (bool, error)
	// AddToGroup adds username to group unless already a member
	AddToGroup(ctx context.Context, username, group string) (added bool, err error)
}

// Manager implements GroupManager with os/user lookups and usermod
type Manager struct {
	runner system.Runner
	logger *logging.Logger

	lookupUser  func(string) (*user.User, error)
	lookupGroup func(string) (*user.Group, error)
}

// NewManager creates a group manager
func NewManager(runner system.Runner, logger *logging.Logger) *Manager {
	return &Manager{
		runner:      runner,
		logger:      logger,
		lookupUser:  user.Lookup,
		lookupGroup: user.LookupGroup,
	}
}

// IsMember reports whether username belongs to group, either as primary
// or supplementary group. This reads the account database, so a membership
// added during this session is reported before the user logs in again.
func (m *Manager) IsMember(username, group string) (bool, error) {
	u, err := m.lookupUser(username)
	if err != nil {
		return false, fmt.Errorf("failed to look up user %s: %w", username, err)
	}
	g, err := m.lookupGroup(group)
	if err != nil {
		return false, fmt.Errorf("failed to look up group %s: %w", group, err)
	}

	if u.Gid == g.Gid {
		return true, nil
	}

	gids, err := u.GroupIds()
	if err != nil {
		return false, fmt.Errorf("failed to list groups for %s: %w", username, err)
	}
	return slices.Contains(gids, g.Gid), nil
}

// AddToGroup runs usermod -aG unless username is already in group
func (m *Manager) AddToGroup(ctx context.Context, username, group string) (bool, error) {
	member, err := m.IsMember(username, group)
	if err != nil {
		m.logger.Warn("usergroup.check_failed", "Could not determine group membership", map[string]interface{}{
			"user":  username,
			"group": group,
			"error": err.Error(),
		})
	}
	if member {
		m.logger.Info("usergroup.present", "User already in group", map[string]interface{}{
			"user":  username,
			"group": group,
		})
		return false, nil
	}

	cmd := system.Command{
		Name:     "usermod",
		Args:     []string{"-aG", group, username},
		Elevated: true,
	}
	if _, err := m.runner.Run(ctx, cmd); err != nil {
		return false, fmt.Errorf("failed to add %s to group %s: %w", username, group, err)
	}

	m.logger.Info("usergroup.added", "User added to group", map[string]interface{}{
		"user":  username,
		"group": group,
	})
	return true, nil
}

// CurrentUsername returns the invoking user. When running under sudo the
// original user is preferred over root.
func CurrentUsername() (string, error) {
	if name := os.Getenv("SUDO_USER"); name != "" && name != "root" {
		return name, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to determine current user: %w", err)
	}
	return u.Username, nil
}
