// Package fn defines function descriptors (the typed signatures nodes are
// instances of), the ordered registry that holds them, and the HCL manifest
// loader with its parity validation against compiled-in handlers.
package fn
