package conversation

const (
	textGreeting       = "Hello, %s! 👋\n\nChoose an option below:"
	textNotRegistered  = "⛔ You are not registered as a teacher.\nPlease contact an administrator to register your account."
	textSessionExpired = "⛔ Session expired. Please /start again."
	textAdminRequired  = "⛔ Admin access required."
	textNoAdminMenu    = "⛔ You do not have admin privileges."
	textCancelled      = "Action cancelled. Returning to main menu."
	textMainMenu       = "Main Menu — choose an option:"
	textManageMenu     = "👥 Manage Students\n\nChoose an action:"
	textAdminMenu      = "⚙️ Admin Menu\n\nChoose an action:"
	textIdleHint       = "Use /start or the menu buttons to continue."
	textDataLost       = "Error: data lost. Please start again."
	textFailure        = "⚠️ Something went wrong. Please try again."

	textAddStudentPrompt = "➕ Add Student\n\nType the student's name (or /cancel to go back):"
	textNameEmpty        = "Name cannot be empty. Please type a valid name:"
	textNameTooLong      = "Name is too long (max 100 characters). Please type a shorter name:"
	textStudentAdded     = "✅ Student '%s' added to your class."

	textNoStudentsToRemove  = "You have no students to remove."
	textRemoveStudentPick   = "❌ Remove Student\n\nSelect the student to remove:"
	textRemoveStudentAsk    = "Are you sure you want to remove '%s'?\nThis will also delete all their attendance records."
	textStudentRemoved      = "✅ Student '%s' has been removed."
	textRemovalCancelled    = "Removal cancelled."
	textStudentDataLost     = "Error: student data lost."
	textStudentNotFound     = "Student not found."
	textNoStudentsToEdit    = "You have no students to edit."
	textEditStudentPick     = "✏️ Edit Student\n\nSelect the student to rename:"
	textEditStudentPrompt   = "Current name: %s\n\nType the new name (or /cancel):"
	textStudentRenamed      = "✅ Student renamed from '%s' to '%s'."
	textNoStudentsToMove    = "You have no students to move."
	textMoveStudentPick     = "🔄 Move Student\n\nSelect the student to move to another class:"
	textNoMoveDestinations  = "There are no other teachers to move this student to."
	textMoveStudentTarget   = "Moving '%s'\n\nSelect the destination teacher's class:"
	textStudentMoved        = "✅ Student '%s' moved to %s's class."
	textDestinationNotFound = "Destination teacher not found."

	textRegisterPrompt     = "➕ Register Teacher\n\nType the new teacher's name (or /cancel):"
	textRegisterIDPrompt   = "Teacher name: %s\n\nNow type the teacher's Telegram user ID (a number).\nThe teacher can find their ID by messaging @userinfobot on Telegram."
	textInvalidTelegramID  = "Please enter a valid number for the Telegram user ID:"
	textRegisterAdminAsk   = "Should this teacher have admin privileges?"
	textTeacherRegistered  = "✅ %s registered as %s (Telegram ID: %d)."
	textTeacherDataLost    = "Error: teacher data lost."
	textNoTeachersToRemove = "No other teachers to remove."
	textRemoveTeacherPick  = "❌ Remove Teacher\n\nSelect the teacher to remove:"
	textRemoveTeacherAsk   = "Are you sure you want to remove teacher '%s'?\nThis will also delete all their students and attendance records."
	textTeacherRemoved     = "✅ Teacher '%s' has been removed."
	textTeacherNotFound    = "Teacher not found."

	textReportTeacherPick = "📊 Download Report\n\nSelect the teacher's class:"
	textNoTeachers        = "No teachers found."
	textReportMonthPick   = "Select the month for the report:"
	textReportGenerating  = "⏳ Generating report, please wait..."
	textReportSent        = "Report sent! Choose an option:"

	textAttendanceHeader = "📋 Attendance for %s\n\nTap a student name to toggle present/absent:"
	textNoStudentsYet    = "You have no students in your class yet.\nUse 'Manage Students' to add students first."
	textAttendanceSaved  = "✅ Attendance saved for %s"

	textRepromptName    = "Please type a name, or /cancel to go back."
	textRepromptPick    = "Please pick one of the options above, or /cancel to go back."
	textRepromptConfirm = "Please answer with the buttons above, or /cancel to go back."
)
