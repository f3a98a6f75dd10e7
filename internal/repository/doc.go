// Package repository holds the storage error vocabulary shared by the
// domain services and their sqlite implementations. Repository interfaces
// live next to the services that consume them.
package repository
