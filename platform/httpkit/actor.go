package httpkit

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Actor is the authenticated caller of a request. Pipeline writes record its
// ID as createdBy / updatedBy.
type Actor struct {
	ID uuid.UUID
}

// ActorFrom returns the actor AuthRequired stored on c.
func ActorFrom(c *gin.Context) (Actor, bool) {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return Actor{}, false
	}
	id, ok := raw.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return Actor{}, false
	}
	return Actor{ID: id}, true
}

// MustGetActor is ActorFrom that aborts with 401 when no actor is present.
func MustGetActor(c *gin.Context) (Actor, bool) {
	actor, ok := ActorFrom(c)
	if !ok {
		abortUnauthorized(c, "unauthorized")
	}
	return actor, ok
}
