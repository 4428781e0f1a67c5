package services

import (
	"context"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

// SubjectLookup fetches the entity a subject reference points at.
type SubjectLookup func(ctx context.Context, id int) (any, error)

// SubjectResolver resolves tagged subject references through an explicit
// per-kind lookup table.
type SubjectResolver struct {
	lookups map[models.SubjectKind]SubjectLookup
}

// NewSubjectResolver constructs an empty resolver.
func NewSubjectResolver() *SubjectResolver {
	return &SubjectResolver{lookups: map[models.SubjectKind]SubjectLookup{}}
}

// Register binds a lookup to a subject kind.
func (r *SubjectResolver) Register(kind models.SubjectKind, lookup SubjectLookup) {
	r.lookups[kind] = lookup
}

// Resolve fetches the entity behind subject. Unknown kinds are Invalid.
func (r *SubjectResolver) Resolve(ctx context.Context, subject models.Subject) (any, error) {
	lookup, ok := r.lookups[subject.Kind]
	if !ok {
		return nil, apperrors.Invalid("unknown subject kind")
	}
	return lookup(ctx, subject.ID)
}
