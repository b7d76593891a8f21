package views

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strconv"

	"github.com/vatsalyanallabothula/weather/internal/modules/weather/comfort"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather/service"
)

const notAvailable = "N/A"

var dashboardTmpl *template.Template

// loadTemplatesFromFS is split out so tests can feed broken file systems.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	dashboardTmpl = tmpl
	return nil
}

// LoadTemplates parses the embedded templates. Call it once at startup;
// the server must not start if it fails.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

type DashboardData struct {
	// Located tells the page script it can skip geolocation and load conditions directly.
	Located bool
}

// ConditionsData is the view model of the conditions fragment. When Halted
// is set only Message is shown.
type ConditionsData struct {
	Halted  bool
	Message string

	LocationName string
	Description  string
	IconURL      string
	Temperature  string
	Humidity     string
	WindSpeed    string
	Coordinates  string
	MapURL       string

	Category string
	Advisory string
	Tone     comfort.Tone
}

// Halt builds the fragment shown when rendering stops early.
func Halt(msg string) ConditionsData {
	return ConditionsData{Halted: true, Message: msg}
}

func NewConditionsData(obs service.Observation) ConditionsData {
	r := obs.Reading
	return ConditionsData{
		LocationName: r.LocationName,
		Description:  r.Description,
		IconURL:      obs.IconURL,
		Temperature:  formatMeasure(r.TemperatureC, "°C"),
		Humidity:     formatMeasure(r.HumidityPct, "%"),
		WindSpeed:    formatMeasure(r.WindSpeedMps, " m/s"),
		Coordinates:  obs.Coordinates.String(),
		MapURL:       mapURL(obs.Coordinates.Latitude, obs.Coordinates.Longitude),
		Category:     obs.Comfort.Category.String(),
		Advisory:     obs.Comfort.Advisory,
		Tone:         obs.Comfort.Tone,
	}
}

func formatMeasure(v *float64, unit string) string {
	if v == nil {
		return notAvailable
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + unit
}

func mapURL(lat, lon float64) string {
	return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%.5f&mlon=%.5f#map=12/%.5f/%.5f", lat, lon, lat, lon)
}

func RenderDashboard(w io.Writer, data DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "dashboard.html", data)
}

// RenderConditionsPartial executes only the conditions fragment.
func RenderConditionsPartial(w io.Writer, data ConditionsData) error {
	if dashboardTmpl == nil {
		return errors.New("conditions template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "conditions.html", data)
}
