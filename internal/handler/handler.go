// Package handler adapts HTTP requests to the services.
//
// Every route is a typed request struct bound by echo (path params, query
// params, then a JSON or form body) and checked by its Validate method
// before the service runs. Handle, HandleNoContent and HandleFile wrap a
// service call with binding, logging, New Relic attributes and the
// response status. Path segments carrying URIs (class ids, mapping ids)
// arrive URL-encoded and are decoded during validation.
package handler
