package domain

import "time"

// Member is the subset of the member record this service reads. Spend is the
// running total of model cost and only ever grows.
type Member struct {
	ID          string
	FirstName   string
	DateOfBirth time.Time
	Spend       Money
}

// Age returns the member's age in whole years at now.
func (m Member) Age(now time.Time) int {
	return ageAt(m.DateOfBirth, now)
}

// AgeLastYear returns the member's age one year before now.
func (m Member) AgeLastYear(now time.Time) int {
	return ageAt(m.DateOfBirth, now.AddDate(-1, 0, 0))
}

// IsBirthday reports whether now falls on the member's birthday.
func (m Member) IsBirthday(now time.Time) bool {
	if m.DateOfBirth.IsZero() {
		return false
	}
	return m.DateOfBirth.Month() == now.Month() && m.DateOfBirth.Day() == now.Day()
}

// BirthdayWithinLastMonth reports whether the most recent birthday happened
// within the 30 days up to and including now.
func (m Member) BirthdayWithinLastMonth(now time.Time) bool {
	if m.DateOfBirth.IsZero() {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	last := birthdayIn(m.DateOfBirth, now.Year())
	if last.After(today) {
		last = birthdayIn(m.DateOfBirth, now.Year()-1)
	}
	return !last.Before(today.AddDate(0, 0, -30))
}

func birthdayIn(dob time.Time, year int) time.Time {
	// Feb 29 birthdays fall on Mar 1 in non-leap years.
	return time.Date(year, dob.Month(), dob.Day(), 0, 0, 0, 0, time.UTC)
}

func ageAt(dob, now time.Time) int {
	if dob.IsZero() {
		return 0
	}
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
