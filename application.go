package appserver

// Application is an opaque handle for a deployed application.
type Application interface {
	Name() string
}

// AppDescriptor is the standard Application handle: a name and the directory the
// application was deployed to.
type AppDescriptor struct {
	AppName string `json:"name"`
	Path    string `json:"path,omitempty"`
}

// NewAppDescriptor creates an application handle.
func NewAppDescriptor(name, path string) *AppDescriptor {
	return &AppDescriptor{AppName: name, Path: path}
}

func (a *AppDescriptor) Name() string { return a.AppName }

// AppPath returns the directory the application was deployed to.
func (a *AppDescriptor) AppPath() string { return a.Path }
