package models

// AbsorptionBlock is one row of the piecewise FPU to absorption time table.
// JSON uses the snake_case names of the bundled default table.
type AbsorptionBlock struct {
	MaxFpu              float64 `json:"max_fpu"`
	AbsorptionTimeHours float64 `json:"absorption_time"`
}

// AbsorptionMinutes returns the absorption time of the block in minutes
func (b AbsorptionBlock) AbsorptionMinutes() float64 {
	return b.AbsorptionTimeHours * 60
}
