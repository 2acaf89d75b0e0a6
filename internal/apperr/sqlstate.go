package apperr

import "github.com/jackc/pgerrcode"

// storeCode is one row of the store error table.
type storeCode struct {
	Kind    Kind
	Message string
}

// storeCodes maps SQLSTATE codes to taxonomy entries. Drivers other than
// Postgres normalise their native codes to SQLSTATE before the error leaves
// the database package, so this is the only table.
var storeCodes = map[string]storeCode{
	pgerrcode.UniqueViolation:                        {KindConstraint, "Duplicate field value entered"},
	pgerrcode.ForeignKeyViolation:                    {KindConstraint, "Invalid reference"},
	pgerrcode.InvalidTextRepresentation:              {KindConstraint, "Invalid data format"},
	pgerrcode.NotNullViolation:                       {KindConstraint, "Missing required field"},
	pgerrcode.StringDataRightTruncationDataException: {KindConstraint, "Value too long"},
}

// FromStoreCode translates a SQLSTATE code. ok is false for codes that have
// no entry; callers treat those as internal errors.
func FromStoreCode(code string, cause error) (*Error, bool) {
	sc, ok := storeCodes[code]
	if !ok {
		return nil, false
	}
	return newError(sc.Kind, sc.Kind.Status(), sc.Message, cause), true
}
