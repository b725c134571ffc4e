package models

// RelayResult is the normalized outcome of a relay submission
type RelayResult struct {
	Success         bool   `json:"success"`
	ContractAddress string `json:"contractAddress,omitempty"` // only for successful creations
	TransactionHash string `json:"transactionHash,omitempty"`
	GasUsed         uint64 `json:"gasUsed,omitempty"`
	Error           string `json:"error,omitempty"` // only on failure
}

// Clone returns a copy of the result
func (r *RelayResult) Clone() *RelayResult {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
