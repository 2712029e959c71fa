package stockledger

import (
	"testing"

	"github.com/google/uuid"

	"github.com/tradebook/tradebook-backend/pkg/database"
)

func TestResolveGenericProductAlwaysPools(t *testing.T) {
	clientID := uuid.New()

	got := Resolve(database.ClassificationGeneric, &clientID)
	if !got.IsGeneric() {
		t.Errorf("generic product with client should resolve to pooled bucket, got %+v", got)
	}
	if got := Resolve(database.ClassificationGeneric, nil); !got.IsGeneric() {
		t.Errorf("generic product without client should resolve to pooled bucket, got %+v", got)
	}
}

func TestResolveCustomisedProductTracksClient(t *testing.T) {
	clientID := uuid.New()

	got := Resolve(database.ClassificationCustomised, &clientID)
	if got.IsGeneric() {
		t.Fatal("customised product with client must not pool")
	}
	if id := got.ClientID(); id == nil || *id != clientID {
		t.Errorf("ClientID() = %v, want %s", id, clientID)
	}

	// No requested client: unscoped bucket, which within one product is
	// indistinguishable from the pool by key but never merged with
	// another product's rows.
	if got := Resolve(database.ClassificationCustomised, nil); !got.IsGeneric() {
		t.Errorf("customised product without client should resolve unscoped, got %+v", got)
	}
}

func TestScopeComparableAsMapKey(t *testing.T) {
	clientID := uuid.New()
	a := ForClient(clientID)
	b := FromClientID(&clientID)
	if a != b {
		t.Error("scopes for the same client should compare equal")
	}
	if ForClient(uuid.New()) == a {
		t.Error("scopes for different clients should not compare equal")
	}
	if Generic() == a {
		t.Error("pooled scope should not equal a client scope")
	}

	m := map[GroupKey]int{}
	productID := uuid.New()
	m[GroupKey{ProductID: productID, Scope: a}] = 1
	m[GroupKey{ProductID: productID, Scope: b}] = 2
	if len(m) != 1 {
		t.Errorf("equal keys should collide in map, got %d entries", len(m))
	}
}

func TestScopeClientIDRoundTrip(t *testing.T) {
	if Generic().ClientID() != nil {
		t.Error("pooled scope should have nil client id")
	}

	clientID := uuid.New()
	s := ForClient(clientID)
	got := s.ClientID()
	if got == nil || *got != clientID {
		t.Fatalf("ClientID() = %v, want %s", got, clientID)
	}
	// Returned pointer must not alias internal state.
	*got = uuid.New()
	if again := s.ClientID(); again == nil || *again != clientID {
		t.Error("mutating the returned pointer must not change the scope")
	}
}
