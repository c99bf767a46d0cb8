// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated caller's identity.
// This interface abstracts identity extraction from the web framework,
// allowing handlers to access caller information without depending on Gin.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// CustomerID returns the tenant the caller belongs to.
	CustomerID() uuid.UUID
	// IsAuthenticated returns true if the caller is authenticated.
	IsAuthenticated() bool
}

// identity is the concrete implementation of Identity.
type identity struct {
	userID        uuid.UUID
	customerID    uuid.UUID
	authenticated bool
}

func (i *identity) UserID() uuid.UUID {
	return i.userID
}

func (i *identity) CustomerID() uuid.UUID {
	return i.customerID
}

func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if caller info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, userOK := c.Get(ContextUserIDKey)
	customerID, custOK := c.Get(ContextCustomerIDKey)

	if !userOK || !custOK {
		return &identity{authenticated: false}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	cid, ok := customerID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	return &identity{
		userID:        uid,
		customerID:    cid,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the caller is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
