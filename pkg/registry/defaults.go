package registry

import (
	"github.com/harvestcrm/automata/pkg/actions/email"
	logaction "github.com/harvestcrm/automata/pkg/actions/log"
	"github.com/harvestcrm/automata/pkg/actions/webhook"
	"github.com/harvestcrm/automata/pkg/notifier"
)

// RegisterDefaults wires the built-in action set.
func RegisterDefaults(r *Registry, n notifier.Notifier) {
	r.RegisterAction(logaction.NewActionFactory())
	r.RegisterAction(webhook.NewActionFactory())
	r.RegisterAction(email.NewActionFactory(n))
}
