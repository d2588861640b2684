// Package registry holds the static driver and team tables for the season.
package registry

import (
	"sort"
	"strings"

	"github.com/okian/gridpick/internal/domain/model"
)

// Placeholder is the value a driver picker shows before a selection is made.
// It is never a valid pick.
const Placeholder = "Select Driver"

var teams = []model.Team{
	{Name: "McLaren", Color: "#FF8000"},
	{Name: "Ferrari", Color: "#E8002D"},
	{Name: "Red Bull Racing", Color: "#3671C6"},
	{Name: "Mercedes", Color: "#27F4D2"},
	{Name: "Aston Martin", Color: "#229971"},
	{Name: "Alpine", Color: "#0093CC"},
	{Name: "Williams", Color: "#64C4FF"},
	{Name: "Racing Bulls", Color: "#6692FF"},
	{Name: "Haas", Color: "#B6BABD"},
	{Name: "Kick Sauber", Color: "#52E252"},
}

var drivers = []model.Driver{
	{Name: "Lando Norris", Code: "NOR", Number: 4, Team: "McLaren"},
	{Name: "Oscar Piastri", Code: "PIA", Number: 81, Team: "McLaren"},
	{Name: "Charles Leclerc", Code: "LEC", Number: 16, Team: "Ferrari"},
	{Name: "Lewis Hamilton", Code: "HAM", Number: 44, Team: "Ferrari"},
	{Name: "Max Verstappen", Code: "VER", Number: 1, Team: "Red Bull Racing"},
	{Name: "Yuki Tsunoda", Code: "TSU", Number: 22, Team: "Red Bull Racing"},
	{Name: "George Russell", Code: "RUS", Number: 63, Team: "Mercedes"},
	{Name: "Kimi Antonelli", Code: "ANT", Number: 12, Team: "Mercedes"},
	{Name: "Fernando Alonso", Code: "ALO", Number: 14, Team: "Aston Martin"},
	{Name: "Lance Stroll", Code: "STR", Number: 18, Team: "Aston Martin"},
	{Name: "Pierre Gasly", Code: "GAS", Number: 10, Team: "Alpine"},
	{Name: "Franco Colapinto", Code: "COL", Number: 43, Team: "Alpine"},
	{Name: "Alexander Albon", Code: "ALB", Number: 23, Team: "Williams"},
	{Name: "Carlos Sainz", Code: "SAI", Number: 55, Team: "Williams"},
	{Name: "Isack Hadjar", Code: "HAD", Number: 6, Team: "Racing Bulls"},
	{Name: "Liam Lawson", Code: "LAW", Number: 30, Team: "Racing Bulls"},
	{Name: "Esteban Ocon", Code: "OCO", Number: 31, Team: "Haas"},
	{Name: "Oliver Bearman", Code: "BEA", Number: 87, Team: "Haas"},
	{Name: "Gabriel Bortoleto", Code: "BOR", Number: 5, Team: "Kick Sauber"},
	{Name: "Nico Hulkenberg", Code: "HUL", Number: 27, Team: "Kick Sauber"},
}

var (
	byName   = make(map[string]model.Driver, len(drivers))
	byNumber = make(map[int]model.Driver, len(drivers))
	byCode   = make(map[string]model.Driver, len(drivers))
	teamIdx  = make(map[string]int, len(teams))
)

func init() { //nolint:gochecknoinits // static lookup tables
	for i, t := range teams {
		teamIdx[t.Name] = i
	}
	for _, d := range drivers {
		byName[d.Name] = d
		byNumber[d.Number] = d
		byCode[d.Code] = d
	}
	sort.SliceStable(drivers, func(i, j int) bool {
		ti, tj := teamIdx[drivers[i].Team], teamIdx[drivers[j].Team]
		if ti != tj {
			return ti < tj
		}
		return drivers[i].Number < drivers[j].Number
	})
}

// Drivers returns every driver, grouped by team in constructor order and by
// car number within a team.
func Drivers() []model.Driver {
	out := make([]model.Driver, len(drivers))
	copy(out, drivers)
	return out
}

// Names returns driver names in Drivers order.
func Names() []string {
	out := make([]string, len(drivers))
	for i, d := range drivers {
		out[i] = d.Name
	}
	return out
}

// Lookup finds a driver by exact name.
func Lookup(name string) (model.Driver, bool) {
	d, ok := byName[name]
	return d, ok
}

// ByCode finds a driver by three-letter code, case-insensitively.
func ByCode(code string) (model.Driver, bool) {
	d, ok := byCode[strings.ToUpper(code)]
	return d, ok
}

// ByNumber finds a driver by car number.
func ByNumber(n int) (model.Driver, bool) {
	d, ok := byNumber[n]
	return d, ok
}

// Team returns the team with the given name.
func Team(name string) (model.Team, bool) {
	i, ok := teamIdx[name]
	if !ok {
		return model.Team{}, false
	}
	return teams[i], true
}

// Teams returns all teams in constructor order.
func Teams() []model.Team {
	out := make([]model.Team, len(teams))
	copy(out, teams)
	return out
}

// TeamColor returns the livery colour for a driver's team, or "" if the
// driver is unknown.
func TeamColor(driver string) string {
	d, ok := byName[driver]
	if !ok {
		return ""
	}
	t, _ := Team(d.Team)
	return t.Color
}

// IsSelectable reports whether name is a real pick: non-empty, not the
// placeholder and a known driver.
func IsSelectable(name string) bool {
	if name == "" || name == Placeholder {
		return false
	}
	_, ok := byName[name]
	return ok
}

// IsBlank reports whether a pick carries no selection.
func IsBlank(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || name == Placeholder
}
