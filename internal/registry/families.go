package registry

import (
	_ "github.com/Alia5/padbridge/controller/dualshock4" // Register dualshock4 family
	_ "github.com/Alia5/padbridge/controller/network"    // Register normalized family
	_ "github.com/Alia5/padbridge/controller/xbox360"    // Register xbox360 family
)
