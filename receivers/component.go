package receivers

import (
	"errors"
	"fmt"

	"github.com/GoCodeAlone/appserver"
)

// build resolves a component type with typeOf and instantiates it through the
// container. found is false when the configuration names no such component.
func build[T any](c *appserver.Container, typeOf func() (string, error)) (component T, found bool, err error) {
	typeName, err := typeOf()
	if errors.Is(err, appserver.ErrConfigurationResolution) {
		return component, false, nil
	}
	if err != nil {
		return component, false, err
	}

	instance, err := c.NewInstance(typeName, c.InitialContext(), c)
	if err != nil {
		return component, true, err
	}

	component, ok := instance.(T)
	if !ok {
		return component, true, fmt.Errorf("%w: %s is %T", ErrWrongComponentKind, typeName, instance)
	}
	return component, true, nil
}

// param returns a node parameter or def when the node or the key is absent.
func param(node appserver.ConfigNode, key, def string) string {
	if node == nil {
		return def
	}
	if v, ok := node.Param(key); ok && v != "" {
		return v
	}
	return def
}

func appNames(apps []appserver.Application) []string {
	names := make([]string, 0, len(apps))
	for _, app := range apps {
		names = append(names, app.Name())
	}
	return names
}
