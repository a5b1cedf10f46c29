package escrow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"verdict.dev/client/protocol"
)

// Custom error codes the program defines, with operator-readable messages.
// The numbers are external contract constants.
const (
	codeInvalidStatusTransition = 6000
	codeDisputeWindowElapsed    = 6001
	codeInsufficientOracles     = 6002
	codeDeviationTooHigh        = 6003
	codeBadOracleSignature      = 6004
	codeEscrowAlreadyExists     = 6005
	codeReputationExists        = 6006
	codeRegistryExists          = 6007
	codeTimeLockNotElapsed      = 6008
)

var customErrorMessages = map[uint64]string{
	codeInvalidStatusTransition: "invalid escrow status transition",
	codeDisputeWindowElapsed:    "dispute window has elapsed",
	codeInsufficientOracles:     "not enough oracle submissions",
	codeDeviationTooHigh:        "oracle score deviation exceeds the consensus threshold",
	codeBadOracleSignature:      "oracle signature verification failed",
	codeEscrowAlreadyExists:     "an escrow already exists for this transaction id",
	codeReputationExists:        "reputation account already initialized",
	codeRegistryExists:          "oracle registry already initialized",
	codeTimeLockNotElapsed:      "time-lock has not elapsed",
}

// ProgramError is a program-defined failure recovered from a simulation. It
// unwraps into the simulation taxonomy so callers can branch on either the
// code or the error kind.
type ProgramError struct {
	Code uint64
}

func (e *ProgramError) Error() string {
	if msg, ok := customErrorMessages[e.Code]; ok {
		return fmt.Sprintf("program error %d: %s", e.Code, msg)
	}
	return fmt.Sprintf("program error %d", e.Code)
}

func (e *ProgramError) Unwrap() error {
	return &protocol.Error{Code: protocol.ERR_SIMULATION, Msg: e.Error()}
}

var (
	// "Custom":6005 (structured err rendered via %v) and
	// "custom program error: 0x1775" (program logs).
	customErrDecimal = regexp.MustCompile(`Custom["\]:\s]*(\d+)`)
	customErrHex     = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)
)

func parseCustomErrorCode(simErr interface{}, logs []string) (uint64, bool) {
	rendered := fmt.Sprintf("%v", simErr)
	if m := customErrDecimal.FindStringSubmatch(rendered); m != nil {
		if code, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			return code, true
		}
	}
	for _, line := range logs {
		if m := customErrHex.FindStringSubmatch(line); m != nil {
			if code, err := strconv.ParseUint(m[1], 16, 64); err == nil {
				return code, true
			}
		}
	}
	return 0, false
}

// translateSimulationError maps a failed dry run into the error taxonomy.
// Simulation output is never surfaced raw.
func translateSimulationError(simErr interface{}, logs []string) error {
	joined := strings.ToLower(fmt.Sprintf("%v %s", simErr, strings.Join(logs, " ")))
	if strings.Contains(joined, "insufficient lamports") ||
		strings.Contains(joined, "insufficient funds") ||
		strings.Contains(joined, "attempt to debit an account") {
		return protocol.Errf(protocol.ERR_SIMULATION, "insufficient balance to fund the submission")
	}
	if code, ok := parseCustomErrorCode(simErr, logs); ok {
		return &ProgramError{Code: code}
	}
	return protocol.Errf(protocol.ERR_SIMULATION, "simulation failed: %v", simErr)
}
