// Package handler exposes the breaker registry operations over HTTP.
//
// Routes are scoped by box:
//
//	GET    /boxes/{box}/breakers                 registered breakers and configs
//	POST   /boxes/{box}/breakers                 register a breaker
//	GET    /boxes/{box}/breakers/{name}          one breaker's config
//	DELETE /boxes/{box}/breakers/{name}          remove a breaker
//	GET    /boxes/{box}/status                   status of every breaker
//	GET    /boxes/{box}/breakers/{name}/status   one breaker's status
//	POST   /boxes/{box}/breakers/{name}/failure  record a failure
//	POST   /boxes/{box}/breakers/{name}/reset    force an open breaker closed
//	POST   /boxes/{box}/breakers/{name}/disable  trip until enabled
//	POST   /boxes/{box}/breakers/{name}/enable   close and clear history
//
// Durations in request and response bodies are strings ("60s", "5m").
package handler
