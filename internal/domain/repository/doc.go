// Package repository defines the domain model and the persistence contract the
// identity core depends on.
//
// The contract is deliberately small (find/create only). Concrete stores live in
// internal/store/{memory,pg}:
//
//	┌─────────────────────────────────────────────┐
//	│   auth/linking, auth/login (core)           │
//	└─────────────────────────────────────────────┘
//	                     │
//	                     ▼
//	┌─────────────────────────────────────────────┐
//	│   domain/repository.Store (interface)       │
//	└─────────────────────────────────────────────┘
//	          ┌──────────┴──────────┐
//	          ▼                     ▼
//	   ┌─────────────┐       ┌─────────────┐
//	   │ store/pg    │       │ store/memory│
//	   └─────────────┘       └─────────────┘
//
// Conventions:
//   - Context is always the first parameter.
//   - Lookups return ErrNotFound, never (nil, nil).
//   - Unique constraint violations surface as ErrConflict.
package repository
