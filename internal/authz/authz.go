// Package authz decides whether an actor may perform an action on a
// resource. Decisions depend on the actor's role and on the actor's relation
// to the resource (owner, same locality, other locality); the rules live in
// an embedded casbin model and policy.
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

type Kind string

const (
	KindPost         Kind = "post"
	KindAnnouncement Kind = "announcement"
	KindEvent        Kind = "event"
	KindPoll         Kind = "poll"
	KindPetition     Kind = "petition"
	KindDiscussion   Kind = "discussion"
	KindNotification Kind = "notification"
	KindProfile      Kind = "profile"
	KindRole         Kind = "role"
	KindAI           Kind = "ai"
)

type Action string

const (
	ActRead   Action = "read"
	ActCreate Action = "create"
	ActUpdate Action = "update"
	ActDelete Action = "delete"
	ActAttend Action = "attend"
	ActVote   Action = "vote"
	ActSign   Action = "sign"
	ActInvoke Action = "invoke"
)

type Relation string

const (
	RelOwner   Relation = "owner"
	RelLocal   Relation = "local"
	RelForeign Relation = "foreign"
)

// Actor is the authenticated user as loaded from the database.
type Actor struct {
	ID       int
	Role     models.Role
	Locality string
}

// ActorOf builds an Actor from a user row.
func ActorOf(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role, Locality: u.Locality}
}

// Resource describes the target of an action. OwnerID is zero when the
// resource has no owner yet, as for creation.
type Resource struct {
	Kind     Kind
	OwnerID  int
	Locality string
}

// Relate computes how the actor stands towards the resource.
func Relate(a Actor, r Resource) Relation {
	switch {
	case r.OwnerID != 0 && r.OwnerID == a.ID:
		return RelOwner
	case r.Locality == a.Locality:
		return RelLocal
	default:
		return RelForeign
	}
}

// Authorizer is safe for concurrent use.
type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
}

// New loads the embedded model and policy.
func New() (*Authorizer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := loadPolicy(e, embeddedPolicy); err != nil {
		return nil, err
	}
	return &Authorizer{enforcer: e}, nil
}

// MustNew is New for package-level setup where the embedded policy is known
// to be valid.
func MustNew() *Authorizer {
	a, err := New()
	if err != nil {
		panic(err)
	}
	return a
}

func loadPolicy(e *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		rule := make([]interface{}, 0, len(parts)-1)
		for _, p := range parts[1:] {
			rule = append(rule, strings.TrimSpace(p))
		}

		var err error
		switch ptype := strings.TrimSpace(parts[0]); ptype {
		case "p":
			_, err = e.AddPolicy(rule...)
		case "g", "g2":
			_, err = e.AddNamedGroupingPolicy(ptype, rule...)
		default:
			err = fmt.Errorf("unknown policy type %q", ptype)
		}
		if err != nil {
			return fmt.Errorf("failed to add policy %q: %w", line, err)
		}
	}
	return nil
}

// Authorize reports whether actor may perform action on resource.
func (a *Authorizer) Authorize(actor Actor, resource Resource, action Action) (bool, error) {
	rel := Relate(actor, resource)
	ok, err := a.enforcer.Enforce(string(actor.Role), string(resource.Kind), string(action), string(rel))
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return ok, nil
}
