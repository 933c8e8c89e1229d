//go:build (darwin || linux) && !noavcnative

// Shared library discovery for the native engines.

package avcdec

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unsafe"
)

// goStringFromPtr converts a C string pointer to a Go string.
func goStringFromPtr(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	p := unsafe.Pointer(ptr)
	var length int
	for *(*byte)(unsafe.Add(p, length)) != 0 {
		length++
		if length > 1024 { // Safety limit
			break
		}
	}
	return string(unsafe.Slice((*byte)(p), length))
}

// findModuleRoot walks up from the working directory to the directory
// containing go.mod.
func findModuleRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// libFileName returns the platform file name for a library base name.
func libFileName(base string) string {
	if runtime.GOOS == "darwin" {
		return base + ".dylib"
	}
	return base + ".so"
}

// libEnvVar returns the per-library override variable, e.g.
// LIBOMX_AVCDEC_HW_SPRD_PATH.
func libEnvVar(base string) string {
	return strings.ToUpper(base) + "_PATH"
}

// libSearchPaths lists candidate paths for a library, highest priority first.
func libSearchPaths(base string) []string {
	var paths []string
	libName := libFileName(base)

	// Environment variable overrides (highest priority)
	if envPath := os.Getenv(libEnvVar(base)); envPath != "" {
		paths = append(paths, envPath)
	}
	if envPath := os.Getenv("AVCDEC_LIB_PATH"); envPath != "" {
		paths = append(paths, filepath.Join(envPath, libName))
	}

	// Search relative to executable location
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, libName),
			filepath.Join(exeDir, "..", "lib", libName),
		)
	}

	// Search relative to module root (find go.mod from cwd)
	if moduleRoot := findModuleRoot(); moduleRoot != "" {
		paths = append(paths,
			filepath.Join(moduleRoot, "build", libName),
			filepath.Join(moduleRoot, "build", "ffi", libName),
		)
	}

	// System paths (lowest priority)
	switch runtime.GOOS {
	case "darwin":
		paths = append(paths,
			libName,
			filepath.Join("/usr/local/lib", libName),
			filepath.Join("/opt/homebrew/lib", libName),
		)
	case "linux":
		paths = append(paths,
			libName,
			filepath.Join("/usr/local/lib", libName),
			filepath.Join("/usr/lib", libName),
			filepath.Join("/system/lib", libName),
			filepath.Join("/vendor/lib", libName),
		)
	}

	return paths
}
