// Package irq models a nested vectored interrupt controller on a single
// execution context.
//
// Lines are registered with a fixed priority and a run-to-completion handler.
// Peripherals pend lines from their own goroutines; the controller dispatches
// them at instruction boundaries (Poll). A line above the currently running
// priority preempts it: its handler runs nested on the same stack and the
// interrupted handler resumes once it returns.
//
// Shared state between priorities is protected with a Ceiling, which raises
// the mask to the priority of the highest user of the resource for the
// duration of the access. The highest user itself never needs to lock.
package irq
