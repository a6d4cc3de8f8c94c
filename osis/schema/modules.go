package schema

import "fmt"

// Module identifies a functional area of the admin system. It is the unit of
// permission granularity: every RolePermission row is keyed by (role, module).
type Module string

const (
	ModuleDashboard    Module = "Dashboard"
	ModuleDivisions    Module = "Divisions"
	ModuleUsers        Module = "Users"
	ModuleProkers      Module = "Prokers"
	ModuleMessages     Module = "Messages"
	ModuleTransactions Module = "Transactions"
	ModuleSettings     Module = "Settings"
	ModuleProfile      Module = "Profile"
)

func AllModules() []Module {
	return []Module{
		ModuleDashboard, ModuleDivisions, ModuleUsers, ModuleProkers,
		ModuleMessages, ModuleTransactions, ModuleSettings, ModuleProfile,
	}
}

func ParseModule(name string) (Module, error) {
	for _, m := range AllModules() {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown module '%v'", name)
}
