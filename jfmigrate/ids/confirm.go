package ids

import (
	"bufio"
	"fmt"
	"io"
)

// ConfirmPolicy decides whether the migration proceeds after identifier
// collisions were detected. Returning an error aborts before any duplicate
// row is deleted. Interactive and headless runs share this one hook.
type ConfirmPolicy func(collisions []Collision) error

// AutoApprove proceeds unconditionally. Used for unattended runs.
func AutoApprove([]Collision) error { return nil }

// AutoReject aborts unconditionally.
func AutoReject(collisions []Collision) error {
	return fmt.Errorf("%d identifier collision(s) rejected by policy", len(collisions))
}

// Prompt returns a policy that asks the operator for acknowledgment on the
// given streams before proceeding.
func Prompt(in io.Reader, out io.Writer) ConfirmPolicy {
	return func(collisions []Collision) error {
		fmt.Fprintf(out, "%d identifier collision(s) detected; the duplicated rows will be deleted.\n", len(collisions))
		fmt.Fprint(out, "Press Enter to continue or Ctrl+C to abort. ")
		reader := bufio.NewReader(in)
		if _, err := reader.ReadString('\n'); err != nil {
			return fmt.Errorf("confirmation aborted: %w", err)
		}
		return nil
	}
}
