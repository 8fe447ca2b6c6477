package help

// DefaultTopics is the built-in help used when no help file is configured.
func DefaultTopics() []Topic {
	return []Topic{
		{
			Name:     "entrada",
			Keywords: []string{"checkin", "llegada"},
			Body: "Escribe \"entrada\" al llegar. Si está permitido, comparte tu ubicación " +
				"en tiempo real dentro de los siguientes 10 minutos para confirmar el registro.",
		},
		{
			Name:     "salida",
			Keywords: []string{"checkout", "terminar"},
			Body: "Escribe \"salida\" al terminar tu jornada y comparte tu ubicación actual. " +
				"Solo puedes registrar salida si tienes una entrada activa.",
		},
		{
			Name:     "ubicacion",
			Keywords: []string{"gps", "mapa", "localizacion"},
			Body: "Comparte tu ubicación actual desde el clip de adjuntos, no un lugar buscado en el mapa. " +
				"Activa el GPS de alta precisión y espera unos segundos antes de enviarla.",
		},
		{
			Name:     "horario",
			Keywords: []string{"horas", "jornada", "limite"},
			Body: "Las entradas se aceptan dentro del horario laboral configurado, " +
				"con un máximo de entradas por día y unos minutos de separación entre registros.",
		},
		{
			Name:     "bloqueo",
			Keywords: []string{"bloqueado", "fraude", "advertencias"},
			Body: "Varias lecturas sospechosas seguidas bloquean temporalmente tus registros. " +
				"Espera a que termine el bloqueo y vuelve a intentar compartiendo tu ubicación real.",
		},
		{
			Name:     "cancelar",
			Keywords: []string{"descartar"},
			Body:     "Escribe \"cancelar\" para descartar una entrada o salida pendiente sin registrar nada.",
		},
		{
			Name:     "estado",
			Keywords: []string{"resumen"},
			Body:     "Escribe \"estado\" para ver si estás dentro o fuera, tus registros de hoy y avisos.",
		},
	}
}
