package daemon

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"text/template"

	"github.com/adrg/xdg"
)

// ServiceName identifies the installed user service.
const ServiceName = "fintrack"

// ServiceManager installs the daemon as a per-user launchd or systemd
// service running "daemon start --foreground".
type ServiceManager struct {
	ExecutablePath string
	ConfigPath     string
	LogPath        string
	GOOS           string

	// UnitDir overrides the directory the service definition goes in.
	UnitDir string

	// Run executes service manager commands.
	Run func(name string, args ...string) error
}

// NewServiceManager creates a service manager for the current executable.
func NewServiceManager(configPath, logPath string) (*ServiceManager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	return &ServiceManager{
		ExecutablePath: execPath,
		ConfigPath:     configPath,
		LogPath:        logPath,
		GOOS:           goruntime.GOOS,
		Run:            runCommand,
	}, nil
}

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, string(out))
	}
	return nil
}

const launchdPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.fintrack.daemon</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>daemon</string>
        <string>start</string>
        <string>--foreground</string>
{{- if .ConfigPath}}
        <string>--config</string>
        <string>{{.ConfigPath}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>
    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>
</dict>
</plist>
`

const systemdUnit = `[Unit]
Description=FinTrack reminder daemon

[Service]
Type=simple
ExecStart={{.ExecutablePath}} daemon start --foreground{{if .ConfigPath}} --config {{.ConfigPath}}{{end}}
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure
RestartSec=5
StandardOutput=append:{{.LogPath}}
StandardError=append:{{.LogPath}}
Environment="XDG_DATA_HOME={{.DataHome}}"
Environment="XDG_STATE_HOME={{.StateHome}}"

[Install]
WantedBy=default.target
`

// UnitPath returns where the service definition is written.
func (m *ServiceManager) UnitPath() (string, error) {
	var dir, name string
	switch m.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir, name = filepath.Join(home, "Library", "LaunchAgents"), "com.fintrack.daemon.plist"
	case "linux":
		dir, name = filepath.Join(xdg.ConfigHome, "systemd", "user"), ServiceName+".service"
	default:
		return "", fmt.Errorf("service installation not supported on %s", m.GOOS)
	}
	if m.UnitDir != "" {
		dir = m.UnitDir
	}
	return filepath.Join(dir, name), nil
}

// Render writes the service definition for the target OS to w.
func (m *ServiceManager) Render(w io.Writer) error {
	text := systemdUnit
	if m.GOOS == "darwin" {
		text = launchdPlist
	}
	tmpl, err := template.New("service").Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse service template: %w", err)
	}

	data := struct {
		ExecutablePath string
		ConfigPath     string
		LogPath        string
		DataHome       string
		StateHome      string
	}{
		ExecutablePath: m.ExecutablePath,
		ConfigPath:     m.ConfigPath,
		LogPath:        m.LogPath,
		DataHome:       xdg.DataHome,
		StateHome:      xdg.StateHome,
	}
	return tmpl.Execute(w, data)
}

// Install writes the service definition and starts the service.
func (m *ServiceManager) Install() error {
	path, err := m.UnitPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create service directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create service file: %w", err)
	}
	if err := m.Render(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write service file: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	if m.GOOS == "darwin" {
		return m.Run("launchctl", "load", path)
	}
	if err := m.Run("systemctl", "--user", "daemon-reload"); err != nil {
		return err
	}
	return m.Run("systemctl", "--user", "enable", "--now", ServiceName+".service")
}

// Uninstall stops the service and removes its definition.
func (m *ServiceManager) Uninstall() error {
	path, err := m.UnitPath()
	if err != nil {
		return err
	}

	// Errors ignored: the service may already be stopped or disabled.
	if m.GOOS == "darwin" {
		m.Run("launchctl", "unload", path)
	} else {
		m.Run("systemctl", "--user", "disable", "--now", ServiceName+".service")
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove service file: %w", err)
	}
	if m.GOOS != "darwin" {
		m.Run("systemctl", "--user", "daemon-reload")
	}
	return nil
}

// IsInstalled checks if the service definition exists.
func (m *ServiceManager) IsInstalled() bool {
	path, err := m.UnitPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
