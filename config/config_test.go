package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/appserver"
)

func TestContainerConfig_Tree(t *testing.T) {
	c := ContainerConfig{
		Name: "web",
		Receiver: &ReceiverConfig{
			Type:   "HttpReceiver",
			Params: map[string]string{"address": "127.0.0.1:0"},
			Worker: &TypeConfig{Type: "EchoWorker"},
			Thread: &TypeConfig{Type: "BoundedThread", Params: map[string]string{"max_concurrency": "2"}},
		},
	}

	tree := c.Tree()
	container := appserver.NewContainer(nil, tree, nil)

	receiverType, err := container.ReceiverType()
	require.NoError(t, err)
	assert.Equal(t, "HttpReceiver", receiverType)

	workerType, err := container.WorkerType()
	require.NoError(t, err)
	assert.Equal(t, "EchoWorker", workerType)

	thread, err := container.ThreadConfiguration()
	require.NoError(t, err)
	assert.Equal(t, "BoundedThread", thread.Type())
	limit, ok := thread.Param("max_concurrency")
	assert.True(t, ok)
	assert.Equal(t, "2", limit)

	receiver, err := container.ReceiverConfiguration()
	require.NoError(t, err)
	address, _ := receiver.Param("address")
	assert.Equal(t, "127.0.0.1:0", address)
}

func TestContainerConfig_TreeWithoutReceiver(t *testing.T) {
	container := appserver.NewContainer(nil, ContainerConfig{Name: "empty"}.Tree(), nil)
	_, err := container.ReceiverType()
	assert.ErrorIs(t, err, appserver.ErrConfigurationResolution)
}

func TestContainerConfig_AppDescriptors(t *testing.T) {
	c := ContainerConfig{Applications: []AppConfig{
		{Name: "shop", Path: "/srv/shop"},
		{Name: "blog"},
	}}

	apps := c.AppDescriptors()
	require.Len(t, apps, 2)
	assert.Equal(t, "shop", apps[0].Name())
	assert.Equal(t, "/srv/shop", apps[0].(*appserver.AppDescriptor).Path)
	assert.Equal(t, "blog", apps[1].Name())

	assert.Empty(t, ContainerConfig{}.AppDescriptors())
}

func TestCompare(t *testing.T) {
	prev := &ServerConfig{Containers: []ContainerConfig{
		{Name: "same", Receiver: &ReceiverConfig{Type: "EchoReceiver"}},
		{Name: "changed", Receiver: &ReceiverConfig{Type: "EchoReceiver"}},
		{Name: "removed", Receiver: &ReceiverConfig{Type: "EchoReceiver"}},
	}}
	next := &ServerConfig{Containers: []ContainerConfig{
		{Name: "same", Receiver: &ReceiverConfig{Type: "EchoReceiver"}},
		{Name: "changed", Receiver: &ReceiverConfig{Type: "HttpReceiver"}},
		{Name: "added", Receiver: &ReceiverConfig{Type: "CronReceiver"}},
	}}

	d := Compare(prev, next)
	require.Len(t, d.Changed, 1)
	assert.Equal(t, "changed", d.Changed[0].Name)
	require.Len(t, d.Added, 1)
	assert.Equal(t, "added", d.Added[0].Name)
	assert.Equal(t, []string{"removed"}, d.Removed)
	assert.False(t, d.Empty())

	assert.True(t, Compare(prev, prev).Empty())
}
