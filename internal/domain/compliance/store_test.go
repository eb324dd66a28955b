package compliance

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestScopeWhereTeam(t *testing.T) {
	where, args := scopeWhere("t1", Scope{SiteID: "S1", TeamOf: "m1"}, "e")
	gt.True(t, strings.Contains(where, "e.site_id = $2"))
	gt.True(t, strings.Contains(where, "(e.manager_id::text = $3 OR e.id::text = $3)"))
	gt.Equal(t, len(args), 3)
	gt.Equal(t, args[2].(string), "m1")
}
