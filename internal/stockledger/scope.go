package stockledger

import (
	"github.com/google/uuid"

	"github.com/tradebook/tradebook-backend/pkg/database"
)

// Scope identifies the stock/demand bucket for a product: either the
// pooled bucket or a client-specific one. It replaces the null-sentinel
// key scheme with an explicit tagged value; the zero value is the pooled
// bucket. Scope is comparable and usable as a map key component.
type Scope struct {
	clientID  uuid.UUID
	hasClient bool
}

// Generic returns the pooled (unscoped) bucket.
func Generic() Scope {
	return Scope{}
}

// ForClient returns the bucket specific to the given client.
func ForClient(clientID uuid.UUID) Scope {
	return Scope{clientID: clientID, hasClient: true}
}

// FromClientID converts a nullable client id column into a Scope.
func FromClientID(id *uuid.UUID) Scope {
	if id == nil {
		return Generic()
	}
	return ForClient(*id)
}

// IsGeneric reports whether the scope is the pooled bucket.
func (s Scope) IsGeneric() bool {
	return !s.hasClient
}

// ClientID returns the scope's client id column value, nil for pooled.
func (s Scope) ClientID() *uuid.UUID {
	if !s.hasClient {
		return nil
	}
	id := s.clientID
	return &id
}

// Resolve maps a product classification and a requested client to the
// bucket every read and write for that pair must use. Generic products
// always pool regardless of the requested client; customised products
// track per client, with "no client" forming its own unscoped bucket
// (distinct per product, never merged with another product's pool).
func Resolve(classification string, requestedClient *uuid.UUID) Scope {
	if classification != database.ClassificationCustomised {
		return Generic()
	}
	return FromClientID(requestedClient)
}

// GroupKey identifies one logical stock/demand group.
type GroupKey struct {
	ProductID uuid.UUID
	Scope     Scope
}
