// Package repository define las entidades del dominio y los contratos de
// persistencia. Los adapters concretos viven en internal/store; este paquete
// no importa nada de infraestructura.
package repository
