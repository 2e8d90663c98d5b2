package domain

const (
	RoleAdmin      = "admin"
	RoleDirectivo  = "directivo"
	RoleDupla      = "dupla"
	RoleDocente    = "docente"
	RoleEstudiante = "estudiante"
	// RoleServicio is the CRUD application's service account; only it and
	// admins may call the internal trigger endpoints.
	RoleServicio = "servicio"
)

const (
	AlertRegistrosNegativos  = "registros_negativos"
	AlertDiscrepanciaDocente = "discrepancia_docente"
	AlertSinRegistro         = "sin_registro"
	AlertDecRepetido         = "dec_repetido"
)

const (
	EstadoDisponible = "disponible"
	EstadoEnClase    = "en_clase"
	EstadoEnReunion  = "en_reunion"
	EstadoAusente    = "ausente"
)

const (
	NotifDecNuevo     = "dec_nuevo"
	NotifDecAsignado  = "dec_asignado"
	NotifAlertaRiesgo = "alerta_riesgo"
	NotifMensaje      = "mensaje"
	NotifAviso        = "aviso"
)

// ValidEstados holds the allowed availability statuses. Any status can be set
// from any other; the set itself is closed.
var ValidEstados = map[string]bool{
	EstadoDisponible: true,
	EstadoEnClase:    true,
	EstadoEnReunion:  true,
	EstadoAusente:    true,
}
