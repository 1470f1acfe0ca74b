// Package domain holds the reminder entities and the ports the scheduling
// engine consumes. Storage backends implement the ports; the engine only
// sees the interfaces.
package domain
