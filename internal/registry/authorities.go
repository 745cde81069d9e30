package registry

import (
	"time"

	"github.com/tejusbharadwaj/gridfeed/internal/models"
)

var (
	lmpAndLoad = []models.DataType{models.DataTypeLMP, models.DataTypeLoad}
	loadOnly   = []models.DataType{models.DataTypeLoad}
)

// EIA-930 respondents that publish their day-ahead demand forecast late.
var eiaForecastDelayed = map[string]bool{
	"AEC": true, "DOPD": true, "GVL": true, "HST": true, "NSB": true,
	"PGE": true, "SCL": true, "TAL": true, "TIDC": true, "TPWR": true,
}

func authorities() []Authority {
	out := []Authority{
		{Code: "CAISO", DisplayName: "California ISO", Family: FamilyCAISO, DataTypes: lmpAndLoad, Class: ClassUS},
		{Code: "PJM", DisplayName: "PJM Interconnection", Family: FamilyPJM, DataTypes: lmpAndLoad, Class: ClassUS, MaxConcurrency: 6},
		{Code: "ERCOT", DisplayName: "Electric Reliability Council of Texas", Family: FamilyERCOT, DataTypes: lmpAndLoad, Class: ClassUS},
		{Code: "ISONE", DisplayName: "ISO New England", Family: FamilyISONE, DataTypes: lmpAndLoad, Class: ClassUS},
		{Code: "NYISO", DisplayName: "New York ISO", Family: FamilyNYISO, DataTypes: lmpAndLoad, Class: ClassUS},
		{Code: "MISO", DisplayName: "Midcontinent ISO", Family: FamilyMISO, DataTypes: lmpAndLoad, Class: ClassUS},
		{Code: "BPA", DisplayName: "Bonneville Power Administration", Family: FamilyBPA, DataTypes: loadOnly, Class: ClassUS},
		{Code: "NEVP", DisplayName: "Nevada Power", Family: FamilyNVEnergy, DataTypes: loadOnly, Class: ClassUS},
		{Code: "SPPC", DisplayName: "Sierra Pacific Power", Family: FamilyNVEnergy, DataTypes: loadOnly, Class: ClassUS},
		{Code: "EU", DisplayName: "ENTSO-E Transparency Platform", Family: FamilyENTSOE, DataTypes: loadOnly, Class: ClassEU, RequiresNodes: true, MaxConcurrency: 2},
	}

	sveri := map[string]string{
		"AZPS": "Arizona Public Service",
		"DEAA": "Arlington Valley",
		"ELE":  "El Paso Electric",
		"GRIF": "Griffith Energy",
		"HGMA": "Harquahala",
		"IID":  "Imperial Irrigation District",
		"PNM":  "Public Service Company of New Mexico",
		"SRP":  "Salt River Project",
		"TEPC": "Tucson Electric Power",
		"WALC": "WAPA Desert Southwest",
	}
	for code, name := range sveri {
		out = append(out, Authority{Code: code, DisplayName: name, Family: FamilySVERI, DataTypes: loadOnly, Class: ClassUS})
	}

	eiaUS := map[string]string{
		"AEC": "PowerSouth Energy Cooperative", "AECI": "Associated Electric Cooperative",
		"AVA": "Avista", "BANC": "Balancing Authority of Northern California",
		"BPAT": "Bonneville Power Administration (EIA)", "CHPD": "Chelan County PUD",
		"CPLE": "Duke Energy Progress East", "CPLW": "Duke Energy Progress West",
		"DOPD": "Douglas County PUD", "DUK": "Duke Energy Carolinas",
		"EPE": "El Paso Electric (EIA)", "FMPP": "Florida Municipal Power Pool",
		"FPC": "Duke Energy Florida", "FPL": "Florida Power & Light",
		"GCPD": "Grant County PUD", "GVL": "Gainesville Regional Utilities",
		"HST": "City of Homestead", "IPCO": "Idaho Power",
		"JEA": "JEA", "LDWP": "Los Angeles Department of Water and Power",
		"LGEE": "Louisville Gas and Electric", "NSB": "New Smyrna Beach",
		"NWMT": "NorthWestern Energy", "PACE": "PacifiCorp East",
		"PACW": "PacifiCorp West", "PGE": "Portland General Electric",
		"PSCO": "Public Service Company of Colorado", "PSEI": "Puget Sound Energy",
		"SC": "South Carolina Public Service Authority", "SCEG": "South Carolina Electric & Gas",
		"SCL": "Seattle City Light", "SEC": "Seminole Electric Cooperative",
		"SOCO": "Southern Company", "SPA": "Southwestern Power Administration",
		"TAL": "City of Tallahassee", "TEC": "Tampa Electric",
		"TIDC": "Turlock Irrigation District", "TPWR": "City of Tacoma",
		"TVA": "Tennessee Valley Authority", "WACM": "WAPA Rocky Mountain",
		"WAUW": "WAPA Upper Great Plains West",
	}
	for code, name := range eiaUS {
		a := Authority{
			Code: code, DisplayName: name, Family: FamilyEIA, DataTypes: loadOnly, Class: ClassUS,
			DefaultWindow: 24 * time.Hour, MaxConcurrency: 2,
		}
		if eiaForecastDelayed[code] {
			a.ForecastLead = 6 * time.Hour
		}
		out = append(out, a)
	}

	// Generation-only respondents: listed for discovery, no load series.
	eiaNoLoad := map[string]string{
		"DEAA-EIA": "DEAA", "EEI": "", "GRIF-EIA": "GRIF", "GRMA": "",
		"GWA": "", "HGMA-EIA": "HGMA", "SEPA": "", "WWA": "", "YAD": "",
	}
	for code, upstream := range eiaNoLoad {
		out = append(out, Authority{
			Code: code, DisplayName: code + " (EIA)", Family: FamilyEIA, Class: ClassUS,
			UpstreamCode: upstream, DefaultWindow: 24 * time.Hour, MaxConcurrency: 2,
		})
	}

	eiaForeign := map[string]Class{
		"IESO": ClassCanada, "BCTC": ClassCanada, "MHEB": ClassCanada, "AESO": ClassCanada,
		"HQT": ClassCanada, "NBSO": ClassCanada, "SPC": ClassCanada, "CFE": ClassMexico,
	}
	for code, class := range eiaForeign {
		out = append(out, Authority{
			Code: code, DisplayName: code + " (EIA)", Family: FamilyEIA, Class: class,
			DefaultWindow: 24 * time.Hour, MaxConcurrency: 2,
		})
	}
	return out
}
