/*
Package procedure is documented across procedure.go (state machine,
Execute, redo/undo signaling), threadcontext.go (per-attempt lock and
SafeContext ownership) and gate.go/watchdog.go (the commit gate and
timeout-based interruption).

A typical procedure body:

	p := procedure.New(sid, func(tc *procedure.ThreadContext) error {
		tc.Lock(accounts.LockID(from), accounts.LockID(to))

		src, ok, err := accounts.Get(tc.Holder(), from)
		if err != nil {
			return err
		}
		if !ok {
			procedure.Undo()
		}
		w := sctx.Wrap[int64, *Account](tc.SContext(), accounts, accounts.ID(), from, src)
		if err := w.Touch(tc.Holder()); err != nil {
			return err
		}
		w.Value().Balance -= amount
		return nil
	})

	err := p.Execute(&procedure.Runtime{Locks: pool, Gate: gate, MaxRedo: 5})
*/
package procedure
