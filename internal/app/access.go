package app

import (
	"fmt"

	"ragdesk/internal/model"
)

// AllowedSourceTypes is the single place access policy is decided: it maps
// a role to the document source types it may see. Every search predicate
// and every submission gate derives from this table. Roles outside the
// closed set are an authorization error, never a permissive default.
func AllowedSourceTypes(role model.Role) ([]model.SourceType, error) {
	switch role {
	case model.RoleFullAccess:
		return []model.SourceType{model.SourcePDF, model.SourceWeb}, nil
	case model.RolePDFOnly:
		return []model.SourceType{model.SourcePDF}, nil
	case model.RoleWebOnly:
		return []model.SourceType{model.SourceWeb}, nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownRole, role)
}

// CanContribute reports whether the role may submit documents of the given
// source type. Contribution rights follow read rights: a role may add what
// it is allowed to query.
func CanContribute(role model.Role, sourceType model.SourceType) (bool, error) {
	allowed, err := AllowedSourceTypes(role)
	if err != nil {
		return false, err
	}
	for _, st := range allowed {
		if st == sourceType {
			return true, nil
		}
	}
	return false, nil
}

// CanDeleteDocuments reports whether the role may delete documents.
// Deletion affects every other user's searchable universe, so it is
// reserved for the unrestricted role.
func CanDeleteDocuments(role model.Role) bool {
	return role == model.RoleFullAccess
}
