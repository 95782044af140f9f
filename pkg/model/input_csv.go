package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/samber/lo"
)

// idList is a ';' separated list of ids inside one CSV cell
type idList []uint64

func (list *idList) UnmarshalCSV(value string) error {
	*list = idList{}
	for _, field := range splitCell(value) {
		id, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", field)
		}
		*list = append(*list, id)
	}
	return nil
}

// optionalId is an id cell that may be left blank
type optionalId struct {
	value *uint64
}

func (id *optionalId) UnmarshalCSV(value string) error {
	if strings.TrimSpace(value) == "" {
		id.value = nil
		return nil
	}
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", value)
	}
	id.value = &parsed
	return nil
}

// daySlotList is a ';' separated list of "day:slot" pairs
type daySlotList []DaySlot

func (list *daySlotList) UnmarshalCSV(value string) error {
	*list = daySlotList{}
	for _, field := range splitCell(value) {
		var daySlot DaySlot
		if _, err := fmt.Sscanf(field, "%d:%d", &daySlot.Day, &daySlot.Slot); err != nil {
			return fmt.Errorf("invalid day slot %q", field)
		}
		*list = append(*list, daySlot)
	}
	return nil
}

// fixedDateList is a ';' separated list of "date@slot" pairs
type fixedDateList []FixedDate

func (list *fixedDateList) UnmarshalCSV(value string) error {
	*list = fixedDateList{}
	for _, field := range splitCell(value) {
		date, slot, found := strings.Cut(field, "@")
		if !found {
			return fmt.Errorf("invalid fixed date %q", field)
		}
		index, err := strconv.ParseUint(strings.TrimSpace(slot), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid fixed date slot %q", field)
		}
		*list = append(*list, FixedDate{Date: strings.TrimSpace(date), Slot: index})
	}
	return nil
}

func splitCell(value string) []string {
	return lo.Filter(lo.Map(strings.Split(value, ";"), func(field string, _ int) string {
		return strings.TrimSpace(field)
	}), func(field string, _ int) bool { return field != "" })
}

type schoolRow struct {
	Id        uint64    `csv:"id"`
	Name      string    `csv:"name"`
	Weekdays  idList    `csv:"weekdays"`
	TimeOfDay TimeOfDay `csv:"time_of_day"`
	Saturday  bool      `csv:"saturday"`
}

type classRow struct {
	Id      uint64      `csv:"id"`
	School  uint64      `csv:"school"`
	Name    string      `csv:"name"`
	Grade   uint64      `csv:"grade"`
	Partner optionalId  `csv:"partner"`
	Slots   daySlotList `csv:"slots"`
}

type trainerRow struct {
	Id       uint64  `csv:"id"`
	Name     string  `csv:"name"`
	Hours    float64 `csv:"hours"`
	Saturday bool    `csv:"saturday"`
	Labs     idList  `csv:"labs"`
}

type availabilityRow struct {
	Trainer   uint64 `csv:"trainer"`
	Day       uint64 `csv:"day"`
	Morning   bool   `csv:"morning"`
	Afternoon bool   `csv:"afternoon"`
}

type trainerDateRow struct {
	Trainer uint64 `csv:"trainer"`
	Date    string `csv:"date"`
	Start   string `csv:"start"`
	End     string `csv:"end"`
}

type labRow struct {
	Id       uint64  `csv:"id"`
	Name     string  `csv:"name"`
	Meetings uint64  `csv:"meetings"`
	Hours    float64 `csv:"hours"`
	Order    uint64  `csv:"order"`
}

type eligibilityRow struct {
	Class     uint64        `csv:"class"`
	Lab       uint64        `csv:"lab"`
	Meetings  optionalId    `csv:"meetings"`
	TimeOfDay TimeOfDay     `csv:"time_of_day"`
	Fixed     fixedDateList `csv:"fixed"`
}

type exclusionRow struct {
	Class     uint64     `csv:"class"`
	Date      string     `csv:"date"`
	Slot      optionalId `csv:"slot"`
	TimeOfDay TimeOfDay  `csv:"time_of_day"`
}

type overrideRow struct {
	Lab      uint64     `csv:"lab"`
	School   optionalId `csv:"school"`
	Class    optionalId `csv:"class"`
	Meetings uint64     `csv:"meetings"`
}

type priorityRow struct {
	Grade uint64 `csv:"grade"`
}

// csvTables reads the tables of one dataset. Table t of dataset s lives in "<t>_<s>.csv", or "<t>.csv" without suffix
type csvTables struct {
	directory string
	suffix    string
}

func (tables csvTables) path(table string) string {
	if tables.suffix == "" {
		return filepath.Join(tables.directory, table+".csv")
	}
	return filepath.Join(tables.directory, fmt.Sprintf("%v_%v.csv", table, tables.suffix))
}

func readTable[T any](tables csvTables, table string, optional bool) ([]T, error) {
	rows := make([]T, 0)
	file, err := os.Open(tables.path(table))
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return rows, nil
		}
		return nil, err
	}
	defer file.Close()

	if err := gocsv.UnmarshalFile(file, &rows); err != nil && !errors.Is(err, gocsv.ErrEmptyCSVFile) {
		return nil, fmt.Errorf("cannot parse %v: %w", tables.path(table), err)
	}
	return rows, nil
}

func InputFromCsv(directory, suffix string, calendar Calendar) (ModelInput, error) {
	rawInput, err := RawInputFromCsv(directory, suffix)
	if err != nil {
		return ModelInput{}, err
	}
	return ProcessRawInput(rawInput, calendar)
}

// RawInputFromCsv reads a catalog split into CSV tables. Schools, classes, trainers, labs and eligibilities are
// required; availability, dates, exclusions, overrides and priorities are optional
func RawInputFromCsv(directory, suffix string) (RawModelInput, error) {
	tables := csvTables{directory, suffix}

	schools, err := readTable[schoolRow](tables, "schools", false)
	if err != nil {
		return RawModelInput{}, err
	}
	classes, err := readTable[classRow](tables, "classes", false)
	if err != nil {
		return RawModelInput{}, err
	}
	trainers, err := readTable[trainerRow](tables, "trainers", false)
	if err != nil {
		return RawModelInput{}, err
	}
	availabilities, err := readTable[availabilityRow](tables, "trainer_availability", true)
	if err != nil {
		return RawModelInput{}, err
	}
	dates, err := readTable[trainerDateRow](tables, "trainer_dates", true)
	if err != nil {
		return RawModelInput{}, err
	}
	labs, err := readTable[labRow](tables, "labs", false)
	if err != nil {
		return RawModelInput{}, err
	}
	eligibilities, err := readTable[eligibilityRow](tables, "eligibilities", false)
	if err != nil {
		return RawModelInput{}, err
	}
	exclusions, err := readTable[exclusionRow](tables, "exclusions", true)
	if err != nil {
		return RawModelInput{}, err
	}
	overrides, err := readTable[overrideRow](tables, "overrides", true)
	if err != nil {
		return RawModelInput{}, err
	}
	priorities, err := readTable[priorityRow](tables, "priorities", true)
	if err != nil {
		return RawModelInput{}, err
	}

	//** Assemble raw input
	availabilityByTrainer := lo.GroupBy(availabilities, func(row availabilityRow) uint64 { return row.Trainer })
	datesByTrainer := lo.GroupBy(dates, func(row trainerDateRow) uint64 { return row.Trainer })

	rawInput := RawModelInput{
		Schools: lo.Map(schools, func(row schoolRow, _ int) School {
			return School{Id: row.Id, Name: row.Name, Weekdays: row.Weekdays, TimeOfDay: row.TimeOfDay, Saturday: row.Saturday}
		}),
		Classes: lo.Map(classes, func(row classRow, _ int) Class {
			return Class{Id: row.Id, School: row.School, Name: row.Name, Grade: row.Grade, Partner: row.Partner.value, Slots: row.Slots}
		}),
		Trainers: lo.Map(trainers, func(row trainerRow, _ int) Trainer {
			return Trainer{
				Id:       row.Id,
				Name:     row.Name,
				Hours:    row.Hours,
				Saturday: row.Saturday,
				Labs:     row.Labs,
				Availability: lo.Map(availabilityByTrainer[row.Id], func(row availabilityRow, _ int) WeekdayAvailability {
					return WeekdayAvailability{Day: row.Day, Morning: row.Morning, Afternoon: row.Afternoon}
				}),
				Dates: lo.Map(datesByTrainer[row.Id], func(row trainerDateRow, _ int) DateAvailability {
					return DateAvailability{Date: row.Date, Start: row.Start, End: row.End}
				}),
			}
		}),
		Labs: lo.Map(labs, func(row labRow, _ int) Lab {
			return Lab{Id: row.Id, Name: row.Name, Meetings: row.Meetings, Hours: row.Hours, Order: row.Order}
		}),
		Eligibilities: lo.Map(eligibilities, func(row eligibilityRow, _ int) Eligibility {
			return Eligibility{Class: row.Class, Lab: row.Lab, Meetings: row.Meetings.value, TimeOfDay: row.TimeOfDay, Fixed: row.Fixed}
		}),
		Exclusions: lo.Map(exclusions, func(row exclusionRow, _ int) Exclusion {
			return Exclusion{Class: row.Class, Date: row.Date, Slot: row.Slot.value, TimeOfDay: row.TimeOfDay}
		}),
		Overrides: lo.Map(overrides, func(row overrideRow, _ int) MeetingOverride {
			return MeetingOverride{Lab: row.Lab, School: row.School.value, Class: row.Class.value, Meetings: row.Meetings}
		}),
		PriorityGrades: lo.Map(priorities, func(row priorityRow, _ int) uint64 { return row.Grade }),
	}

	for _, row := range availabilities {
		if !lo.ContainsBy(trainers, func(trainer trainerRow) bool { return trainer.Id == row.Trainer }) {
			return RawModelInput{}, MissingReferenceError{Entity: "availability", Id: row.Day, Reference: "trainer", Missing: row.Trainer}
		}
	}
	for _, row := range dates {
		if !lo.ContainsBy(trainers, func(trainer trainerRow) bool { return trainer.Id == row.Trainer }) {
			return RawModelInput{}, MissingReferenceError{Entity: "trainer date", Id: row.Trainer, Reference: "trainer", Missing: row.Trainer}
		}
	}

	return rawInput, nil
}
