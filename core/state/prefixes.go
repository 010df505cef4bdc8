package state

var (
	poolSeqKey       = []byte("pool/seq")
	poolRecordPrefix = []byte("pool/record/")
	poolSeatPrefix   = []byte("pool/seat/")
	poolEventPrefix  = []byte("pool/event/")

	roomSeqKey       = []byte("room/seq")
	roomRecordPrefix = []byte("room/record/")
	roomNoncePrefix  = []byte("room/nonce/")

	feesAccruedKey = []byte("fees/accrued")

	tokenBalancePrefix   = []byte("token/balance/")
	tokenAllowancePrefix = []byte("token/allowance/")
	tokenSupplyKey       = []byte("token/supply")

	paramPrefix = []byte("params/")
)
