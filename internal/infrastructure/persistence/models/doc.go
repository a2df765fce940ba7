// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free of ORM
// concerns; each model converts to and from its entity with ToDomain/FromDomain.
//
// JSON payloads (raw external data, mapped data, enum tables, run failures) are stored
// as jsonb text columns and decoded on read.
package models
