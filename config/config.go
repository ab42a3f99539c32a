// Package config loads the server configuration file and turns each container
// section into the configuration tree a Container resolves its types from.
package config

import (
	"reflect"

	"github.com/GoCodeAlone/appserver"
)

// ServerConfig is the top-level configuration document.
type ServerConfig struct {
	Name        string            `yaml:"name" json:"name" toml:"name" env:"APPSERVER_NAME" validate:"required"`
	Workers     int               `yaml:"workers" json:"workers" toml:"workers" env:"APPSERVER_WORKERS" validate:"gte=0"`
	LogLevel    string            `yaml:"log_level" json:"log_level" toml:"log_level" env:"APPSERVER_LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat   string            `yaml:"log_format" json:"log_format" toml:"log_format" env:"APPSERVER_LOG_FORMAT" validate:"oneof=json console"`
	MetricsAddr string            `yaml:"metrics_addr" json:"metrics_addr" toml:"metrics_addr" env:"APPSERVER_METRICS_ADDR" validate:"omitempty,hostname_port"`
	Containers  []ContainerConfig `yaml:"containers" json:"containers" toml:"containers" validate:"required,min=1,unique=Name,dive"`
}

// ContainerConfig describes one container. Receiver may be omitted; the
// container then fails when it is run, not when it is loaded.
type ContainerConfig struct {
	Name         string          `yaml:"name" json:"name" toml:"name" validate:"required"`
	Receiver     *ReceiverConfig `yaml:"receiver" json:"receiver" toml:"receiver"`
	Applications []AppConfig     `yaml:"applications" json:"applications" toml:"applications" validate:"unique=Name,dive"`
}

// ReceiverConfig names the receiver type and its optional worker and thread.
type ReceiverConfig struct {
	Type   string            `yaml:"type" json:"type" toml:"type" validate:"required"`
	Params map[string]string `yaml:"params" json:"params" toml:"params"`
	Worker *TypeConfig       `yaml:"worker" json:"worker" toml:"worker"`
	Thread *TypeConfig       `yaml:"thread" json:"thread" toml:"thread"`
}

// TypeConfig names a component type and its parameters.
type TypeConfig struct {
	Type   string            `yaml:"type" json:"type" toml:"type" validate:"required"`
	Params map[string]string `yaml:"params" json:"params" toml:"params"`
}

// AppConfig describes a deployed application.
type AppConfig struct {
	Name string `yaml:"name" json:"name" toml:"name" validate:"required"`
	Path string `yaml:"path" json:"path" toml:"path"`
}

// Tree builds the container configuration tree:
//
//	container
//	└── receiver type=...
//	    ├── worker type=...
//	    └── thread type=...
func (c ContainerConfig) Tree() *appserver.Node {
	root := appserver.NewNode("container", "")
	if c.Receiver == nil {
		return root
	}

	receiver := appserver.NewNode("receiver", c.Receiver.Type).WithParams(c.Receiver.Params)
	if c.Receiver.Worker != nil {
		receiver.Append(appserver.NewNode("worker", c.Receiver.Worker.Type).WithParams(c.Receiver.Worker.Params))
	}
	if c.Receiver.Thread != nil {
		receiver.Append(appserver.NewNode("thread", c.Receiver.Thread.Type).WithParams(c.Receiver.Thread.Params))
	}
	return root.Append(receiver)
}

// AppDescriptors returns the container's applications in declaration order.
func (c ContainerConfig) AppDescriptors() []appserver.Application {
	apps := make([]appserver.Application, 0, len(c.Applications))
	for _, app := range c.Applications {
		apps = append(apps, appserver.NewAppDescriptor(app.Name, app.Path))
	}
	return apps
}

// Container returns the container section with the given name.
func (s *ServerConfig) Container(name string) (ContainerConfig, bool) {
	for _, c := range s.Containers {
		if c.Name == name {
			return c, true
		}
	}
	return ContainerConfig{}, false
}

// Diff lists what changed between two configurations, by container name.
type Diff struct {
	Added   []ContainerConfig
	Changed []ContainerConfig
	Removed []string
}

// Empty reports whether the diff has no entries.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}

// Compare reports the container sections of next that are new or differ from
// prev, and the names present only in prev.
func Compare(prev, next *ServerConfig) Diff {
	var d Diff
	for _, c := range next.Containers {
		old, ok := prev.Container(c.Name)
		switch {
		case !ok:
			d.Added = append(d.Added, c)
		case !reflect.DeepEqual(old, c):
			d.Changed = append(d.Changed, c)
		}
	}
	for _, c := range prev.Containers {
		if _, ok := next.Container(c.Name); !ok {
			d.Removed = append(d.Removed, c.Name)
		}
	}
	return d
}
