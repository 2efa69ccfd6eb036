package types

// Method names served by a CometBFT node. The engine treats methods as opaque
// strings; these are provided for callers and the typed endpoint helpers.
const (
	MethodABCIInfo          = "abci_info"
	MethodABCIQuery         = "abci_query"
	MethodBlock             = "block"
	MethodBlockResults      = "block_results"
	MethodBlockchain        = "blockchain"
	MethodBroadcastEvidence = "broadcast_evidence"
	MethodBroadcastTxAsync  = "broadcast_tx_async"
	MethodBroadcastTxCommit = "broadcast_tx_commit"
	MethodBroadcastTxSync   = "broadcast_tx_sync"
	MethodCommit            = "commit"
	MethodConsensusParams   = "consensus_params"
	MethodConsensusState    = "consensus_state"
	MethodGenesis           = "genesis"
	MethodHealth            = "health"
	MethodNetInfo           = "net_info"
	MethodStatus            = "status"
	MethodSubscribe         = "subscribe"
	MethodTx                = "tx"
	MethodTxSearch          = "tx_search"
	MethodUnsubscribe       = "unsubscribe"
	MethodUnsubscribeAll    = "unsubscribe_all"
	MethodValidators        = "validators"
)
