package mockbackend

import (
	"strings"

	"github.com/jrsteele09/go-backoffice-session/navigation"
	"github.com/jrsteele09/go-backoffice-session/users"
	"golang.org/x/crypto/bcrypt"
)

// Fixture accounts only; a low cost keeps test servers quick to start.
const hashCost = bcrypt.MinCost

// Account is an operator the mock backend can authenticate.
type Account struct {
	Identifier string // Login name; the profile email is accepted too
	Password   string
	Profile    users.Profile
}

type account struct {
	identifier   string
	passwordHash string
	profile      users.Profile
}

// DefaultAccounts are seeded unless WithAccounts replaces them. Every
// password is "password".
var DefaultAccounts = []Account{
	{Identifier: "admin", Password: "password", Profile: users.Profile{ID: "u0", DisplayName: "Ada", FullName: "Ada Admin", RoleName: string(users.RoleAdmin), Email: "ada@example.com"}},
	{Identifier: "dispatch", Password: "password", Profile: users.Profile{ID: "u1", DisplayName: "Jo", FullName: "Jo Bloggs", RoleName: string(users.RoleDispatcher), Email: "jo@example.com", PhotoURL: "https://example.com/avatars/u1.png"}},
	{Identifier: "finance", Password: "password", Profile: users.Profile{ID: "u2", DisplayName: "Sam", FullName: "Sam Ledger", RoleName: string(users.RoleFinance), Email: "sam@example.com"}},
	{Identifier: "support", Password: "password", Profile: users.Profile{ID: "u3", DisplayName: "Kim", FullName: "Kim Helpdesk", RoleName: string(users.RoleSupport), Email: "kim@example.com"}},
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func newAccounts(seed []Account) (map[string]*account, error) {
	accounts := make(map[string]*account, len(seed)*2)
	for _, a := range seed {
		hash, err := HashPassword(a.Password)
		if err != nil {
			return nil, err
		}
		acc := &account{identifier: a.Identifier, passwordHash: hash, profile: a.Profile}
		accounts[strings.ToLower(a.Identifier)] = acc
		if a.Profile.Email != "" {
			accounts[strings.ToLower(a.Profile.Email)] = acc
		}
	}
	return accounts, nil
}

type catalogueRoute struct {
	navigation.Route
	roles []users.RoleType
}

var (
	allRoles     = []users.RoleType{users.RoleAdmin, users.RoleDispatcher, users.RoleFinance, users.RoleSupport}
	orderRoles   = []users.RoleType{users.RoleAdmin, users.RoleDispatcher, users.RoleSupport}
	dispatchRole = []users.RoleType{users.RoleAdmin, users.RoleDispatcher}
	financeRoles = []users.RoleType{users.RoleAdmin, users.RoleFinance}
	supportRoles = []users.RoleType{users.RoleAdmin, users.RoleSupport}
	adminRoles   = []users.RoleType{users.RoleAdmin}
)

// catalogue is the full back-office menu. Each role sees the entries that
// list it.
var catalogue = []catalogueRoute{
	{navigation.Route{ID: 1, Title: "Dashboard", ExternalRouteID: "dashboard", Icon: "home"}, allRoles},
	{navigation.Route{ID: 10, Title: "Orders", Icon: "box", IsGroupHeader: true}, orderRoles},
	{navigation.Route{ID: 11, ParentID: 10, Title: "Open orders", ExternalRouteID: "orders.open"}, orderRoles},
	{navigation.Route{ID: 12, ParentID: 10, Title: "Order history", ExternalRouteID: "orders.history"}, orderRoles},
	{navigation.Route{ID: 20, Title: "Dispatch", Icon: "truck", IsGroupHeader: true}, dispatchRole},
	{navigation.Route{ID: 21, ParentID: 20, Title: "Live board", ExternalRouteID: "dispatch.board"}, dispatchRole},
	{navigation.Route{ID: 22, ParentID: 20, Title: "Couriers", ExternalRouteID: "dispatch.couriers"}, dispatchRole},
	{navigation.Route{ID: 30, Title: "Finance", Icon: "wallet", IsGroupHeader: true}, financeRoles},
	{navigation.Route{ID: 31, ParentID: 30, Title: "Settlements", ExternalRouteID: "finance.settlements"}, financeRoles},
	{navigation.Route{ID: 32, ParentID: 30, Title: "Reports", ExternalRouteID: "finance.reports"}, financeRoles},
	{navigation.Route{ID: 40, Title: "Support", Icon: "lifebuoy", IsGroupHeader: true}, supportRoles},
	{navigation.Route{ID: 41, ParentID: 40, Title: "Tickets", ExternalRouteID: "support.tickets"}, supportRoles},
	{navigation.Route{ID: 50, Title: "Administration", Icon: "shield", IsGroupHeader: true}, adminRoles},
	{navigation.Route{ID: 51, ParentID: 50, Title: "Operators", ExternalRouteID: "admin.operators"}, adminRoles},
}

// RoutesFor returns the full navigation granted to role.
func RoutesFor(role users.RoleType) []navigation.Route {
	routes := []navigation.Route{}
	for _, r := range catalogue {
		if grants(r.roles, role) {
			routes = append(routes, r.Route)
		}
	}
	return routes
}

// ModulesFor returns the reduced navigation embedded in the login response:
// the top-level entries only.
func ModulesFor(role users.RoleType) []navigation.Route {
	modules := []navigation.Route{}
	for _, r := range RoutesFor(role) {
		if r.ParentID == 0 {
			modules = append(modules, r)
		}
	}
	return modules
}

func grants(roles []users.RoleType, role users.RoleType) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
