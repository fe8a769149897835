package transaction

import (
	"fmt"
	"sync/atomic"
)

// Permission is the access mode a page is requested with.
type Permission int

const (
	ReadOnly Permission = iota
	ReadWrite
)

func (p Permission) String() string {
	if p == ReadWrite {
		return "READ_WRITE"
	}
	return "READ_ONLY"
}

type TxnID uint64

type Transaction interface {
	GetID() TxnID
}

var txnCounter uint64 = 0

// New returns a transaction with a process wide unique, increasing id.
func New() Transaction {
	return txn{id: TxnID(atomic.AddUint64(&txnCounter, 1))}
}

var _ Transaction = txn{}

type txn struct {
	id TxnID
}

func (t txn) GetID() TxnID {
	return t.id
}

func (t txn) String() string {
	return fmt.Sprintf("txn(%d)", t.id)
}
