package registry

// defaultLabs is the course's dataset table. Some datasets are shared
// between labs and land in the same relative destination in each.
var defaultLabs = []Lab{
	{
		ID:   1,
		Name: "lab-01-nyc-neighborhood-signals",
		Datasets: []Dataset{
			{"dgomonov/new-york-city-airbnb-open-data", "data/raw/airbnb", "NYC Airbnb Open Data"},
			{"new-york-city/ny-311-service-requests", "data/raw/311_requests", "NY 311 Service Requests (Large: ~10GB)"},
			{"brunacmendes/nypd-complaint-data-historic-20062019", "data/raw/nypd_crime", "NYPD Crime Complaint Data Historic"},
			{"danbraswell/new-york-city-weather-18692022", "data/raw/weather", "NYC Weather 1869-2022"},
		},
	},
	{
		ID:   2,
		Name: "lab-02-us-safety-drivers",
		Datasets: []Dataset{
			{"yuvrajdhepe/us-accidents-processed", "data/raw/accidents", "US Accidents Processed"},
			{"noaa/noaa-global-surface-summary-of-the-day", "data/raw/weather", "NOAA Weather Data (Very Large: ~20GB)"},
			{"danofer/zipcodes-county-fips-crosswalk", "data/raw/geo_crosswalk", "US Zipcode to County/FIPS Crosswalk"},
			{"fridrichmrtn/public-holidays", "data/raw/holidays", "Worldwide Public Holidays"},
		},
	},
	{
		ID:   3,
		Name: "lab-03-hospitality-demand",
		Datasets: []Dataset{
			{"jessemostipak/hotel-booking-demand", "data/raw/hotel_bookings", "Hotel Booking Demand"},
			{"fridrichmrtn/public-holidays", "data/raw/holidays", "Worldwide Public Holidays (shared with Lab 2)"},
			{"noaa/noaa-global-surface-summary-of-the-day", "data/raw/weather", "NOAA Weather Data (shared with Lab 2)"},
		},
	},
	{
		ID:   4,
		Name: "lab-04-streaming-catalog",
		Datasets: []Dataset{
			{"shivamb/netflix-shows", "data/raw/netflix", "Netflix Movies and TV Shows"},
			{"rounakbanik/the-movies-dataset", "data/raw/tmdb_movies", "The Movies Dataset (TMDb)"},
			{"tmdb/tmdb-movie-metadata", "data/raw/tmdb_5000", "TMDb 5000 Movie Dataset"},
		},
	},
	{
		ID:   5,
		Name: "lab-05-nyc-mobility-externalities",
		Datasets: []Dataset{
			{"anandaramg/taxi-trip-data-nyc", "data/raw/taxi", "NYC Taxi Trip Data (Very Large: ~10GB)"},
			{"new-york-city/ny-311-service-requests", "data/raw/311_requests", "NY 311 Service Requests (shared with Lab 1)"},
			{"danbraswell/new-york-city-weather-18692022", "data/raw/weather", "NYC Weather (shared with Lab 1)"},
		},
	},
}

// Default returns the built-in registry of the five course labs.
func Default() *Registry {
	r, err := New(defaultLabs...)
	if err != nil {
		panic("registry: invalid built-in table: " + err.Error())
	}
	return r
}
