/*
Package api exposes sentinel's state to operators and load balancers.

Two listeners are provided, both read-only:

HTTP (HealthServer):

	/health   overall component health; 503 only when a component is unhealthy
	/ready    200 once runtime, failover and reconciler have reported
	/live     process liveness
	/status   failover state, last probe results, restart budgets,
	          per-container risk and recent events as one JSON document
	/metrics  Prometheus exposition

A Middleware can be placed in front of the HTTP endpoints. It restricts
clients to an allow list of addresses or CIDR ranges and applies a per-client
token bucket; refused requests get 403 or 429.

gRPC (GRPCHealth) implements grpc.health.v1. Service "dns" is SERVING while an
active resolver exists and NOT_SERVING when no target is reachable. Each
target also has an entry named after it reflecting its last probe. The unary
interceptor rejects anything other than the health service's query methods.

	g := api.NewGRPCHealth(machine.Targets())
	machine.OnTick(g.Follow(machine))
	go g.Serve(ctx, ":9091")
*/
package api
