package txn

// AdminTransaction is a CommandTransaction carrying DDL authority. Its
// isolation and commit semantics are identical to CommandTransaction
// (spec §4.D.1 "AdminTransaction — command transaction plus DDL
// authority"); the authority flag exists purely so callers elsewhere in
// the system can gate catalog-mutating operations, which are themselves
// out of this core's scope.
type AdminTransaction struct {
	*CommandTransaction
}

// IsAdmin always reports true; it exists so generic code can type-switch
// on the capability rather than the concrete transaction type.
func (at *AdminTransaction) IsAdmin() bool { return true }
