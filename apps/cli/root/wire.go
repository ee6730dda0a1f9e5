package root

import (
	migratecmd "github.com/atriumhq/atrium-saas/apps/cli/cmd/migrate"
	tenantcmd "github.com/atriumhq/atrium-saas/apps/cli/cmd/tenant"
	tokencmd "github.com/atriumhq/atrium-saas/apps/cli/cmd/token"
)

func init() {
	Root().AddCommand(migratecmd.Command())
	Root().AddCommand(tenantcmd.Command())
	Root().AddCommand(tokencmd.Command())
}
