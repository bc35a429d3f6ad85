package service

import "github.com/kestrel-run/orchestra/internal/domain/orcherr"

func orcherrNoBackend(agentID string) error {
	return orcherr.New(orcherr.KindAgent, "no execution backend bound for agent: "+agentID)
}

func orcherrBreakerOpen(agentID string) error {
	return orcherr.New(orcherr.KindAgent, "circuit breaker open for agent: "+agentID)
}
