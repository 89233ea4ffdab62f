/*
NAME
  urls.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package modelconfig

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/pkg/errors"
)

// urlFields is the set of fields a model's url_template may reference,
// replacing the Python f-string placeholders {year}, {month}, {day},
// {cycle}, {fhour}, {internal_id} and {grib_level} with Go template
// actions of the same names.
type urlFields struct {
	Year       string
	Month      string
	Day        string
	Cycle      string
	FHour      string
	InternalID string
	GribLevel  string
	URLID      string
	URLLevel   string
}

// RequestURL is one resolved download request: a URL and the forecast
// hour it was generated for, carried through so a downloader failure
// can be attributed to a specific stream.
//
// For the per-(forecast_hour, variable) layout, Variable names the
// single variable the URL was built for and Variables is empty. For
// the NOMADS bulk layout, one URL bundles every non-skipped variable
// for that forecast hour, listed in Variables, and Variable is zero.
type RequestURL struct {
	URL        string
	Variable   Variable
	Variables  []Variable
	ForecastHr int
}

// sourceAgencyNOMADS is the metadata.source_agency value that selects the
// bulk per-forecast-hour URL layout (spec §4.4), matching NOMADS's
// grib-filter CGI endpoints, which take one request per forecast hour
// with all wanted variables named in its query string rather than one
// request per variable.
const sourceAgencyNOMADS = "NOMADS"

// GenerateURLs returns every download URL a cycle starting at cycleTime
// needs, honoring forecast duration (ForecastDuration) and each
// variable's skip list.
//
// For metadata.source_agency == "NOMADS" it emits one URL per forecast
// hour: the base url_template with one url_variable_template fragment
// per non-skipped variable appended, all fragments joined with "&".
// Otherwise it emits one URL per (forecast_hour, variable) pair using
// url_template alone.
func (m *Model) GenerateURLs(cycleTime time.Time) ([]RequestURL, error) {
	tmpl, err := template.New(m.ID).Parse(m.Download.URLTemplate)
	if err != nil {
		return nil, errors.Wrapf(err, "modelconfig: %s: parsing url_template", m.ID)
	}

	var varTmpl *template.Template
	if m.SourceAgency == sourceAgencyNOMADS {
		varTmpl, err = template.New(m.ID + "-variable").Parse(m.Download.URLVariableTemplate)
		if err != nil {
			return nil, errors.Wrapf(err, "modelconfig: %s: parsing url_variable_template", m.ID)
		}
	}

	maxFHour := m.ForecastDuration(cycleTime.Hour())

	year := cycleTime.Format("2006")
	month := cycleTime.Format("01")
	day := cycleTime.Format("02")
	cycle := fmt.Sprintf("%02d", cycleTime.Hour())

	var out []RequestURL
	for fhour := 0; fhour <= maxFHour; fhour++ {
		fhourStr := fmt.Sprintf("%0*d", m.Download.FhourDigits, fhour)

		if m.SourceAgency == sourceAgencyNOMADS {
			url, vars, err := m.generateNOMADSURL(tmpl, varTmpl, year, month, day, cycle, fhourStr, fhour)
			if err != nil {
				return nil, err
			}
			if url == "" {
				continue
			}
			out = append(out, RequestURL{URL: url, Variables: vars, ForecastHr: fhour})
			continue
		}

		for _, v := range m.Variables {
			if skipsHour(v.Skip, fhour) {
				continue
			}

			fields := urlFields{
				Year:       year,
				Month:      month,
				Day:        day,
				Cycle:      cycle,
				FHour:      fhourStr,
				InternalID: v.InternalID,
				GribLevel:  v.GribLevel,
				URLID:      v.URLID,
				URLLevel:   v.URLLevel,
			}

			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, fields); err != nil {
				return nil, errors.Wrapf(err, "modelconfig: %s: executing url_template", m.ID)
			}
			out = append(out, RequestURL{URL: buf.String(), Variable: v, ForecastHr: fhour})
		}
	}
	return out, nil
}

// generateNOMADSURL builds the single bulk-file URL for one forecast
// hour: the rendered base url_template with every non-skipped
// variable's url_variable_template fragment appended, joined by "&".
func (m *Model) generateNOMADSURL(tmpl, varTmpl *template.Template, year, month, day, cycle, fhourStr string, fhour int) (string, []Variable, error) {
	baseFields := urlFields{
		Year:  year,
		Month: month,
		Day:   day,
		Cycle: cycle,
		FHour: fhourStr,
	}
	var base bytes.Buffer
	if err := tmpl.Execute(&base, baseFields); err != nil {
		return "", nil, errors.Wrapf(err, "modelconfig: %s: executing url_template", m.ID)
	}

	var fragments []string
	var vars []Variable
	for _, v := range m.Variables {
		if skipsHour(v.Skip, fhour) {
			continue
		}

		fields := urlFields{
			Year:       year,
			Month:      month,
			Day:        day,
			Cycle:      cycle,
			FHour:      fhourStr,
			InternalID: v.InternalID,
			GribLevel:  v.GribLevel,
			URLID:      v.URLID,
			URLLevel:   v.URLLevel,
		}
		var buf bytes.Buffer
		if err := varTmpl.Execute(&buf, fields); err != nil {
			return "", nil, errors.Wrapf(err, "modelconfig: %s: executing url_variable_template", m.ID)
		}
		fragments = append(fragments, buf.String())
		vars = append(vars, v)
	}
	if len(fragments) == 0 {
		return "", nil, nil
	}

	return base.String() + "&" + strings.Join(fragments, "&"), vars, nil
}

func skipsHour(skip []int, fhour int) bool {
	for _, h := range skip {
		if h == fhour {
			return true
		}
	}
	return false
}
