package chain

// circleABI covers the read-only surface of the savings circle contract
const circleABI = `[
	{"type":"function","name":"operationCounter","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"currentOperationIndex","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"recurringAmount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"depositFrequency","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"currentPeriodDeposits","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"hasDepositedCurrentPeriod","stateMutability":"view","inputs":[{"name":"member","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"isMember","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

const (
	methodOperationCounter      = "operationCounter"
	methodCurrentOperationIndex = "currentOperationIndex"
	methodRecurringAmount       = "recurringAmount"
	methodDepositFrequency      = "depositFrequency"
	methodPeriodDeposits        = "currentPeriodDeposits"
	methodHasDeposited          = "hasDepositedCurrentPeriod"
	methodIsMember              = "isMember"
)
