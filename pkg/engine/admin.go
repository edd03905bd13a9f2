package engine

import "github.com/ethereum/go-ethereum/common"

// The administrative surface. Every mutator is gated to the single
// administrator identity fixed at construction and emits a policy-change
// event on success.

func (e *Engine) requireAdmin(caller common.Address) error {
	if caller != e.admin {
		return ErrNotAdmin
	}
	return nil
}

// SetBundler adds or removes a bundler whitelist entry.
func (e *Engine) SetBundler(caller, bundler common.Address, allowed bool) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.policy.setBundler(bundler, allowed)
	e.sink.PolicyChanged(PolicyEvent{Kind: "bundler", Subject: bundler, Allowed: allowed})
	return nil
}

// SetUnrestricted toggles unrestricted-bundler mode. While on, any caller
// may submit but every batch is limited to exactly one operation.
func (e *Engine) SetUnrestricted(caller common.Address, on bool) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.policy.setUnrestricted(on)
	e.sink.PolicyChanged(PolicyEvent{Kind: "unrestricted", Allowed: on})
	return nil
}

// SetFactory adds or removes an account-factory allowlist entry. Deploy
// requests naming an unrecognized factory are skipped, not failed.
func (e *Engine) SetFactory(caller, factory common.Address, allowed bool) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if allowed {
		e.factories.Add(factory)
	} else {
		e.factories.Remove(factory)
	}
	e.sink.PolicyChanged(PolicyEvent{Kind: "factory", Subject: factory, Allowed: allowed})
	return nil
}

// SetModule adds or removes a wallet-module allowlist entry. The engine only
// stores the set; accounts consult it through ModuleAllowed.
func (e *Engine) SetModule(caller, module common.Address, allowed bool) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if allowed {
		e.modules.Add(module)
	} else {
		e.modules.Remove(module)
	}
	e.sink.PolicyChanged(PolicyEvent{Kind: "module", Subject: module, Allowed: allowed})
	return nil
}

// FactoryAllowed reports whether factory is on the recognized-factory list.
func (e *Engine) FactoryAllowed(factory common.Address) bool {
	return e.factories.Contains(factory)
}

// ModuleAllowed reports whether module is whitelisted.
func (e *Engine) ModuleAllowed(module common.Address) bool {
	return e.modules.Contains(module)
}
