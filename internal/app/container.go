// Package app wires core shen services using go.uber.org/dig.
package app

import (
	"context"

	"go.uber.org/dig"

	"github.com/shen-assistant/shen/internal/config"
	"github.com/shen-assistant/shen/internal/mcp"
	"github.com/shen-assistant/shen/internal/plugin"
	"github.com/shen-assistant/shen/internal/task"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg     *config.Config
	store   *mcp.Store
	mcpMgr  *mcp.Manager
	plugins *plugin.Manager
	tasks   *task.Service
}

func (c *Container) Config() *config.Config     { return c.cfg }
func (c *Container) MCPStore() *mcp.Store       { return c.store }
func (c *Container) MCPManager() *mcp.Manager   { return c.mcpMgr }
func (c *Container) Plugins() *plugin.Manager   { return c.plugins }
func (c *Container) TaskService() *task.Service { return c.tasks }

// New builds and wires all core services from cfg. Plugin discovery
// runs as part of construction; MCP services are not connected until
// the caller asks for it.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(newMCPStore); err != nil {
		return nil, err
	}
	if err := d.Provide(newMCPManager); err != nil {
		return nil, err
	}
	if err := d.Provide(newPluginManager); err != nil {
		return nil, err
	}
	if err := d.Provide(newTaskService); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		store *mcp.Store,
		mcpMgr *mcp.Manager,
		plugins *plugin.Manager,
		tasks *task.Service,
	) {
		tasks.SetOnJob(func(ctx context.Context, job task.Job) (string, error) {
			return runTask(ctx, plugins, job.Payload.Task, job.Payload.Args)
		})
		result = &Container{
			cfg:     cfg,
			store:   store,
			mcpMgr:  mcpMgr,
			plugins: plugins,
			tasks:   tasks,
		}
	})
	return result, err
}

func newMCPStore(cfg *config.Config) (*mcp.Store, error) {
	store := mcp.NewStore(cfg.MCPStoreDir())
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

func newMCPManager(store *mcp.Store) *mcp.Manager {
	return mcp.NewManager(store, nil)
}

func newPluginManager(cfg *config.Config) *plugin.Manager {
	m := plugin.NewManager(cfg.ExpandedPluginDirs(), nil)
	m.Discover()
	return m
}

func newTaskService(cfg *config.Config) *task.Service {
	return task.NewService(cfg.TaskStorePath())
}
