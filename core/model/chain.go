package model

type ChainHead struct {
	Number    uint64
	Timestamp uint64
}
