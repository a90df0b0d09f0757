package render

// Locale selects the reply language.
type Locale string

const (
	French  Locale = "fr"
	English Locale = "en"
)

type catalog struct {
	notUnderstood string
	degraded      string
	noSensors     string
	allFresh      string // count
	someStale     string // stale, total, list
	more          string // hidden count
	unknownSensor string // id
	sensorFresh   string // id, last seen
	sensorStale   string // id, last seen
	sensorNever   string // id
	timeLayout    string
}

var catalogs = map[Locale]catalog{
	French: {
		notUnderstood: "Je n'ai pas compris la question. Essayez par ex. : « Tous les capteurs sont-ils connectés ? »",
		degraded:      "Le service de données est momentanément indisponible, réessayez plus tard.",
		noSensors:     "Aucun capteur n'est enregistré.",
		allFresh:      "Oui, tous les capteurs sont connectés (%d).",
		someStale:     "Non, %d capteur(s) sur %d déconnecté(s) : %s.",
		more:          " (+%d autres)",
		unknownSensor: "Le capteur %s est inconnu.",
		sensorFresh:   "Oui, le capteur %s est connecté (dernière donnée le %s).",
		sensorStale:   "Non, le capteur %s est déconnecté depuis le %s.",
		sensorNever:   "Non, le capteur %s n'a jamais transmis de données.",
		timeLayout:    "02/01/2006 15:04 MST",
	},
	English: {
		notUnderstood: "I didn't understand the question. Try for instance: \"Are all sensors connected?\"",
		degraded:      "The data service is temporarily unavailable, please try again later.",
		noSensors:     "No sensors are registered.",
		allFresh:      "Yes, all sensors are connected (%d).",
		someStale:     "No, %d of %d sensors are disconnected: %s.",
		more:          " (+%d more)",
		unknownSensor: "Sensor %s is unknown.",
		sensorFresh:   "Yes, sensor %s is connected (last data at %s).",
		sensorStale:   "No, sensor %s has been disconnected since %s.",
		sensorNever:   "No, sensor %s has never reported data.",
		timeLayout:    "2006-01-02 15:04 MST",
	},
}

// Supported reports whether l has a message catalog.
func Supported(l string) bool {
	_, ok := catalogs[Locale(l)]
	return ok
}
