package config

// DefaultConfig returns the configuration for an Ubuntu 24.04 host
func DefaultConfig() Config {
	return Config{
		ScratchDir: "/tmp/intel-driver-install",
		OS: OSConfig{
			ExpectedToken: "24.04",
			ReleaseFile:   "/etc/os-release",
		},
		Hardware: HardwareConfig{
			Keywords: []string{
				"VGA compatible controller: Intel",
				"Display controller: Intel",
				"Processing accelerators: Intel",
				"Intel Corporation Meteor Lake NPU",
			},
			SysfsDRM: "/sys/class/drm",
		},
		GPU: GPUConfig{
			Repository: "ppa:kobuk-team/intel-graphics",
			Packages: []string{
				// compute / OpenCL runtime
				"libze-intel-gpu1",
				"libze1",
				"intel-opencl-icd",
				// metrics and diagnostics libraries
				"intel-metrics-discovery",
				"intel-gsc",
				// media acceleration
				"intel-media-va-driver-non-free",
				"libmfx-gen1",
				"libvpl2",
				"libvpl-tools",
				"libva-glx2",
				"va-driver-all",
				// diagnostic tools
				"clinfo",
				"vainfo",
				"intel-gpu-tools",
			},
			Group: "render",
		},
		NPU: NPUConfig{
			Dependencies:  []string{"dkms", "build-essential", "libtbb12"},
			Release:       "1.13.0",
			BaseURL:       "https://github.com/intel/linux-npu-driver/releases/download",
			ArchiveFormat: "tar.gz",
			Installer:     "npu-installer",
		},
		Verify: VerifyConfig{
			Tools: []ToolCheck{
				{Name: "clinfo", Args: []string{"--list"}},
				{Name: "vainfo"},
			},
			KernelModule: "intel_vpu",
			DeviceNode:   "/dev/accel/accel0",
			ModulesFile:  "/proc/modules",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   "~/.local/state/intelaccel/install.log",
		},
		Metrics: MetricsConfig{
			History: "~/.local/state/intelaccel/runs.jsonl",
		},
		HTTP: HTTPConfig{
			TimeoutSeconds: 900,
		},
	}
}
