// Package key implements the encoded key format of spec §3/§6: a byte
// string whose first byte discriminates a closed set of key kinds. Row keys
// additionally encode (table_id, row_number); all other kinds carry their
// own payload after the discriminator.
package key

// Kind is a key's first-byte discriminator. The set is closed: every
// variant here and no others may appear on the wire.
type Kind uint8

const (
	KindUndefined Kind = iota

	// Catalog / relational kinds.
	KindNamespace
	KindNamespaceTable
	KindTable
	KindColumns
	KindColumn
	KindColumnProperty
	KindRow
	KindIndex
	KindIndexEntry
	KindPrimaryKey
	KindNamespaceView
	KindView
	KindNamespaceRingBuffer
	KindRingBuffer
	KindNamespaceFlow
	KindFlow
	KindFlowNode
	KindFlowEdge
	KindDictionary
	KindDictionaryEntry
	KindUser
	KindRole

	// Subscription / flow-glue kinds.
	KindSubscription
	KindSubscriptionColumn
	KindSubscriptionRow

	// Internal bookkeeping kinds. All but KindCdc are excluded from CDC.
	KindFlowNodeState
	KindFlowNodeInternalState
	KindCdcConsumer
	KindCdc
	KindMetric
	KindSystemSequence
	KindRowSequence
	KindColumnSequence
	KindDictionarySequence
	KindSystemVersion
	KindTransactionVersion
	KindFlowVersion
	KindRingBufferMetadata
)

// cdcExclusion records, for every Kind, whether spec §6 names it as excluded
// from CDC production. Every Kind must have an explicit entry (see
// TestCDCExclusionIsExhaustive in kind_test.go) so a newly added kind cannot
// silently default to either policy.
var cdcExclusion = map[Kind]bool{
	KindUndefined: true,

	KindNamespace:           false,
	KindNamespaceTable:      false,
	KindTable:               false,
	KindColumns:             false,
	KindColumn:              false,
	KindColumnProperty:      false,
	KindRow:                 false,
	KindIndex:               true,
	KindIndexEntry:          false,
	KindPrimaryKey:          false,
	KindNamespaceView:       false,
	KindView:                false,
	KindNamespaceRingBuffer: false,
	KindRingBuffer:          false,
	KindNamespaceFlow:       false,
	KindFlow:                false,
	KindFlowNode:            false,
	KindFlowEdge:            false,
	KindDictionary:          false,
	KindDictionaryEntry:     false,
	KindUser:                false,
	KindRole:                false,

	KindSubscription:       true,
	KindSubscriptionColumn: true,
	KindSubscriptionRow:    true,

	KindFlowNodeState:         true,
	KindFlowNodeInternalState: true,
	KindCdcConsumer:           true,
	KindCdc:                   false,
	KindMetric:                true,
	KindSystemSequence:        true,
	KindRowSequence:           true,
	KindColumnSequence:        true,
	KindDictionarySequence:    true,
	KindSystemVersion:         true,
	KindTransactionVersion:    true,
	KindFlowVersion:           true,
	KindRingBufferMetadata:    true,
}

// ExcludedFromCDC reports whether deltas under keys of this kind must never
// produce a CDC change (spec §6).
func ExcludedFromCDC(k Kind) bool {
	excluded, ok := cdcExclusion[k]
	if !ok {
		// Fail closed: an unclassified kind must never leak into CDC.
		return true
	}
	return excluded
}

func (k Kind) String() string {
	switch k {
	case KindNamespace:
		return "Namespace"
	case KindNamespaceTable:
		return "NamespaceTable"
	case KindTable:
		return "Table"
	case KindColumns:
		return "Columns"
	case KindColumn:
		return "Column"
	case KindColumnProperty:
		return "ColumnProperty"
	case KindRow:
		return "Row"
	case KindIndex:
		return "Index"
	case KindIndexEntry:
		return "IndexEntry"
	case KindPrimaryKey:
		return "PrimaryKey"
	case KindNamespaceView:
		return "NamespaceView"
	case KindView:
		return "View"
	case KindNamespaceRingBuffer:
		return "NamespaceRingBuffer"
	case KindRingBuffer:
		return "RingBuffer"
	case KindNamespaceFlow:
		return "NamespaceFlow"
	case KindFlow:
		return "Flow"
	case KindFlowNode:
		return "FlowNode"
	case KindFlowEdge:
		return "FlowEdge"
	case KindDictionary:
		return "Dictionary"
	case KindDictionaryEntry:
		return "DictionaryEntry"
	case KindUser:
		return "User"
	case KindRole:
		return "Role"
	case KindSubscription:
		return "Subscription"
	case KindSubscriptionColumn:
		return "SubscriptionColumn"
	case KindSubscriptionRow:
		return "SubscriptionRow"
	case KindFlowNodeState:
		return "FlowNodeState"
	case KindFlowNodeInternalState:
		return "FlowNodeInternalState"
	case KindCdcConsumer:
		return "CdcConsumer"
	case KindCdc:
		return "Cdc"
	case KindMetric:
		return "Metric"
	case KindSystemSequence:
		return "SystemSequence"
	case KindRowSequence:
		return "RowSequence"
	case KindColumnSequence:
		return "ColumnSequence"
	case KindDictionarySequence:
		return "DictionarySequence"
	case KindSystemVersion:
		return "SystemVersion"
	case KindTransactionVersion:
		return "TransactionVersion"
	case KindFlowVersion:
		return "FlowVersion"
	case KindRingBufferMetadata:
		return "RingBufferMetadata"
	default:
		return "Undefined"
	}
}

// allKinds is used by tests to assert cdcExclusion is exhaustive.
var allKinds = []Kind{
	KindNamespace, KindNamespaceTable, KindTable, KindColumns, KindColumn,
	KindColumnProperty, KindRow, KindIndex, KindIndexEntry, KindPrimaryKey,
	KindNamespaceView, KindView, KindNamespaceRingBuffer, KindRingBuffer,
	KindNamespaceFlow, KindFlow, KindFlowNode, KindFlowEdge, KindDictionary,
	KindDictionaryEntry, KindUser, KindRole, KindSubscription,
	KindSubscriptionColumn, KindSubscriptionRow, KindFlowNodeState,
	KindFlowNodeInternalState, KindCdcConsumer, KindCdc, KindMetric,
	KindSystemSequence, KindRowSequence, KindColumnSequence,
	KindDictionarySequence, KindSystemVersion, KindTransactionVersion,
	KindFlowVersion, KindRingBufferMetadata,
}
