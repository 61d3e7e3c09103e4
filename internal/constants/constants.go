package constants

// Application constants
const (
	Name        = "evomorph"
	Version     = "1.0.0"
	Description = "Evolutionary search over voxel robot morphologies"

	// Algorithm names
	AlgorithmRandom = "random"
	AlgorithmES     = "ES"
	AlgorithmGA     = "GA"

	// Search defaults
	DefaultSimSteps          = 400
	DefaultEvaluations       = 400
	DefaultWorkers           = 5
	DefaultAlgorithm         = AlgorithmRandom
	DefaultPopulationSize    = 20
	DefaultMutationProb      = 0.3
	DefaultLambda            = 5
	DefaultMutationIntensity = 2
	DefaultTournamentSize    = 2

	// GA offspring receive a single perturbation when mutated
	GAMutationSize = 1

	// Variation operators give up after this many invalid candidates
	MaxAttempts = 5000

	// Robot defaults
	DefaultRobotClass  = "voxel"
	DefaultRobotWidth  = 5
	DefaultRobotHeight = 5

	// World defaults
	DefaultWorldClass      = "line"
	DefaultWorldLength     = 60
	DefaultWorldFreq       = 0.1
	DefaultWorldBumpHeight = 3
	DefaultWorldBumpLength = 10

	// Output
	DefaultLogDir      = "log"
	DefaultPrefix      = ""
	RobotFileFormat    = "%s_robot_%05d.json"
	WorldFileSuffix    = "_world.json"
	SummaryFileSuffix  = "_summary.json"
	RunTimestampLayout = "01021504"

	// Ledger
	LedgerMemory      = "memory"
	LedgerSQLite      = "sqlite"
	DefaultLedger     = LedgerMemory
	DefaultLedgerPath = "evomorph.db"
	DefaultLogLevel   = "info"
	DefaultConfigFile = "evomorph.yaml"
	SummaryVersion    = "1.0"

	// Exit codes
	ExitSuccess   = 0
	ExitError     = 1
	ExitInterrupt = 2
)
