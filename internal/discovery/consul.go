// Package discovery announces a running node to Consul so peers and load
// balancers can find it.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/consul/api"

	"paustdb/internal/config"
)

const (
	checkInterval   = "10s"
	checkTimeout    = "2s"
	deregisterAfter = "1m"
)

// Registrar registers one service instance with the local Consul agent.
type Registrar struct {
	agent  *api.Agent
	reg    *api.AgentServiceRegistration
	logger *slog.Logger
}

// NewRegistration builds the agent registration for a node serving HTTP on port.
// The instance is health checked through its /health endpoint.
func NewRegistration(cfg config.ConsulConfig, port int) *api.AgentServiceRegistration {
	host := cfg.ServiceAddress
	if host == "" {
		host = "127.0.0.1"
	}
	name := cfg.ServiceName
	if name == "" {
		name = "paustdb"
	}

	return &api.AgentServiceRegistration{
		ID:      fmt.Sprintf("%s-%s-%d", name, host, port),
		Name:    name,
		Address: cfg.ServiceAddress,
		Port:    port,
		Tags:    []string{"tsdb", "http"},
		Check: &api.AgentServiceCheck{
			HTTP:                           "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/health",
			Interval:                       checkInterval,
			Timeout:                        checkTimeout,
			DeregisterCriticalServiceAfter: deregisterAfter,
		},
	}
}

// NewRegistrar creates a Consul client for cfg.Address.
func NewRegistrar(cfg config.ConsulConfig, port int, logger *slog.Logger) (*Registrar, error) {
	clientConfig := api.DefaultConfig()
	clientConfig.Address = cfg.Address

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}

	return &Registrar{
		agent:  client.Agent(),
		reg:    NewRegistration(cfg, port),
		logger: logger.With("component", "discovery"),
	}, nil
}

// ServiceID returns the registered instance id.
func (r *Registrar) ServiceID() string {
	return r.reg.ID
}

// Register announces the instance. Re-registering the same id replaces it.
func (r *Registrar) Register(ctx context.Context) error {
	opts := api.ServiceRegisterOpts{ReplaceExistingChecks: true}.WithContext(ctx)
	if err := r.agent.ServiceRegisterOpts(r.reg, opts); err != nil {
		return fmt.Errorf("consul register %s: %w", r.reg.ID, err)
	}
	r.logger.Info("consul_registered", "service_id", r.reg.ID, "port", r.reg.Port)
	return nil
}

// Deregister removes the instance. It is given its own timeout because it
// usually runs after the serving context was cancelled.
func (r *Registrar) Deregister(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	q := (&api.QueryOptions{}).WithContext(ctx)
	if err := r.agent.ServiceDeregisterOpts(r.reg.ID, q); err != nil {
		return fmt.Errorf("consul deregister %s: %w", r.reg.ID, err)
	}
	r.logger.Info("consul_deregistered", "service_id", r.reg.ID)
	return nil
}
